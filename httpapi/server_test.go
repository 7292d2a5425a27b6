package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"stampchat/auth"
	"stampchat/blob"
	"stampchat/composition"
	"stampchat/moderation"
	"stampchat/repositories"
	"stampchat/runtime"
	"stampchat/runtime/workers"
	"stampchat/search"
	"stampchat/services"
	"stampchat/sink"
	"stampchat/ws"
)

type apiFixture struct {
	server *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := search.OpenInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	groups := repositories.NewGroupRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	users := repositories.NewUserRepository(db)

	supervisor := workers.NewSupervisor(log, 10*time.Millisecond)
	orchestrator := runtime.NewOrchestrator(log, supervisor, runtime.NewRegistry(),
		messages, groups, 16, 100*time.Millisecond)
	orchestrator.AddSinks(sink.NewSearchSink(index, log, 1, 10*time.Millisecond))
	orchestrator.Start(context.Background())
	t.Cleanup(orchestrator.Stop)

	moderator, err := moderation.NewModerator([]string{"moron"}, '*')
	require.NoError(t, err)
	pipeline := composition.NewPipeline(moderator, log)

	tokens := auth.NewTokenManager("test_secret_key_for_unit_tests", "stampchat", time.Hour)
	authService := services.NewAuthService(users, tokens, auth.NewNotifier(4))
	directory := services.NewDirectoryService(groups, orchestrator, log)
	chat := services.NewChatService(groups, pipeline, orchestrator, log)

	resolver, err := blob.NewDiskResolver(t.TempDir(), "http://localhost", log)
	require.NoError(t, err)

	apiServer := NewServer(authService, directory, chat, resolver, index,
		tokens, resolver.Root(), log)
	wsHandler := ws.NewHandler(chat, tokens, log)

	testServer := httptest.NewServer(apiServer.Handler(wsHandler))
	t.Cleanup(testServer.Close)
	return &apiFixture{server: testServer}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)

	decoded := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (f *apiFixture) register(t *testing.T, email, name string) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email":        email,
		"password":     "ComplexPass123!",
		"display_name": name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["token"].(string)
}

func Test_Register_Then_Login(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	fixture.register(t, "alice@example.com", "Alice")

	resp, body := fixture.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "ComplexPass123!",
	})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.NotEmpty(body["token"])

	resp, _ = fixture.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "WrongPassword1!",
	})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Group_Lifecycle_Over_HTTP(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	alice := fixture.register(t, "alice@example.com", "Alice")
	bob := fixture.register(t, "bob@example.com", "Bob")

	resp, group := fixture.do(t, http.MethodPost, "/api/groups", alice,
		map[string]string{"display_name": "Family"})
	req.Equal(http.StatusCreated, resp.StatusCode)
	joinCode := group["join_code"].(string)
	groupID := group["id"].(string)

	// Resolving a code previews the group without joining
	resp, preview := fixture.do(t, http.MethodGet, "/api/groups/resolve?code="+joinCode, bob, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(float64(1), preview["member_count"])

	resp, joined := fixture.do(t, http.MethodPost, "/api/groups/join", bob,
		map[string]string{"join_code": joinCode})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(float64(2), joined["member_count"])

	// Rename by a member keeps the join code
	resp, renamed := fixture.do(t, http.MethodPatch, "/api/groups/"+groupID, bob,
		map[string]string{"display_name": "Family 2.0"})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(joinCode, renamed["join_code"])

	// A non-member cannot rename
	mallory := fixture.register(t, "mallory@example.com", "Mallory")
	resp, _ = fixture.do(t, http.MethodPatch, "/api/groups/"+groupID, mallory,
		map[string]string{"display_name": "Hijacked"})
	req.Equal(http.StatusForbidden, resp.StatusCode)

	resp, _ = fixture.do(t, http.MethodPost, "/api/groups/"+groupID+"/leave", bob, nil)
	req.Equal(http.StatusNoContent, resp.StatusCode)

	_, listing := fixture.do(t, http.MethodGet, "/api/groups", bob, nil)
	req.Empty(listing["groups"])
}

func Test_Messages_Over_HTTP_Grouped_By_Day(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	alice := fixture.register(t, "alice@example.com", "Alice")

	_, group := fixture.do(t, http.MethodPost, "/api/groups", alice,
		map[string]string{"display_name": "Family"})
	groupID := group["id"].(string)

	resp, sent := fixture.do(t, http.MethodPost, "/api/groups/"+groupID+"/messages", alice,
		map[string]any{"body": "hello", "stamp": "wave", "stamp_cursor": -1})
	req.Equal(http.StatusCreated, resp.StatusCode)
	req.Equal("hello[stamp:wave]", sent["body"])
	req.Equal("mine", sent["side"])

	resp, history := fixture.do(t, http.MethodGet, "/api/groups/"+groupID+"/messages", alice, nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	days := history["days"].([]any)
	req.Len(days, 1)
	today := days[0].(string)
	req.Equal(time.Now().UTC().Format("2006-01-02"), today)

	byDay := history["messages"].(map[string]any)
	req.Len(byDay[today], 1)

	// Empty drafts are rejected
	resp, _ = fixture.do(t, http.MethodPost, "/api/groups/"+groupID+"/messages", alice,
		map[string]any{"body": ""})
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	// Non-members cannot read or post
	mallory := fixture.register(t, "mallory@example.com", "Mallory")
	resp, _ = fixture.do(t, http.MethodGet, "/api/groups/"+groupID+"/messages", mallory, nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func Test_Upload_Then_Send_Attachment(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	alice := fixture.register(t, "alice@example.com", "Alice")

	_, group := fixture.do(t, http.MethodPost, "/api/groups", alice,
		map[string]string{"display_name": "Family"})
	groupID := group["id"].(string)

	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A,
		0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}
	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "pic.png")
	req.NoError(err)
	_, err = part.Write(png)
	req.NoError(err)
	req.NoError(writer.Close())

	uploadReq, err := http.NewRequest(http.MethodPost, fixture.server.URL+"/api/uploads", &form)
	req.NoError(err)
	uploadReq.Header.Set("Authorization", "Bearer "+alice)
	uploadReq.Header.Set("Content-Type", writer.FormDataContentType())

	uploadResp, err := fixture.server.Client().Do(uploadReq)
	req.NoError(err)
	defer uploadResp.Body.Close()
	req.Equal(http.StatusCreated, uploadResp.StatusCode)

	var uploaded map[string]string
	req.NoError(json.NewDecoder(uploadResp.Body).Decode(&uploaded))
	req.Equal("image", uploaded["kind"])
	req.NotEmpty(uploaded["url"])

	resp, sent := fixture.do(t, http.MethodPost, "/api/groups/"+groupID+"/messages", alice,
		map[string]any{"attachment_ref": uploaded["url"], "attachment_kind": uploaded["kind"]})
	req.Equal(http.StatusCreated, resp.StatusCode)
	req.Equal(uploaded["url"], sent["attachment_ref"])
}

func Test_Search_Respects_Membership(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	alice := fixture.register(t, "alice@example.com", "Alice")
	bob := fixture.register(t, "bob@example.com", "Bob")

	_, group := fixture.do(t, http.MethodPost, "/api/groups", alice,
		map[string]string{"display_name": "Family"})
	groupID := group["id"].(string)

	resp, _ := fixture.do(t, http.MethodPost, "/api/groups/"+groupID+"/messages", alice,
		map[string]any{"body": "the secret picnic plan"})
	req.Equal(http.StatusCreated, resp.StatusCode)

	// Indexing is asynchronous behind the fanout
	req.Eventually(func() bool {
		_, result := fixture.do(t, http.MethodGet, "/api/search?q=picnic", alice, nil)
		hits, ok := result["hits"].([]any)
		return ok && len(hits) == 1
	}, 2*time.Second, 50*time.Millisecond)

	// Bob is not a member and sees nothing
	_, result := fixture.do(t, http.MethodGet, "/api/search?q=picnic", bob, nil)
	req.Empty(result["hits"])
}

func (f *apiFixture) dialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	frame := map[string]any{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func Test_Websocket_Subscribe_And_Live_Delivery(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	alice := fixture.register(t, "alice@example.com", "Alice")
	bob := fixture.register(t, "bob@example.com", "Bob")

	_, group := fixture.do(t, http.MethodPost, "/api/groups", alice,
		map[string]string{"display_name": "Family"})
	groupID := group["id"].(string)
	resp, _ := fixture.do(t, http.MethodPost, "/api/groups/join", bob,
		map[string]string{"join_code": group["join_code"].(string)})
	req.Equal(http.StatusOK, resp.StatusCode)

	conn := fixture.dialWS(t, bob)
	req.NoError(conn.WriteJSON(map[string]string{"type": "subscribe", "group_id": groupID}))

	// The subscribe must yield a snapshot, even though the upgrade request
	// has long since returned
	snapshot := readFrame(t, conn)
	req.Equal("snapshot", snapshot["type"])

	// Alice posts over HTTP while Bob is live
	resp, _ = fixture.do(t, http.MethodPost, "/api/groups/"+groupID+"/messages", alice,
		map[string]any{"body": "hello bob"})
	req.Equal(http.StatusCreated, resp.StatusCode)

	live := readFrame(t, conn)
	req.Equal("message", live["type"])
	req.Equal("hello bob", live["message"].(map[string]any)["body"])

	// Posting over the socket reaches the sender's own subscription too
	req.NoError(conn.WriteJSON(map[string]any{
		"type": "post", "group_id": groupID, "body": "over the wire"}))
	live = readFrame(t, conn)
	req.Equal("message", live["type"])
	req.Equal("over the wire", live["message"].(map[string]any)["body"])
}

func Test_Websocket_Resubscribe_Yields_Snapshot_Every_Time(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	alice := fixture.register(t, "alice@example.com", "Alice")

	_, group := fixture.do(t, http.MethodPost, "/api/groups", alice,
		map[string]string{"display_name": "Family"})
	groupID := group["id"].(string)

	conn := fixture.dialWS(t, alice)
	for i := 0; i < 10; i++ {
		req.NoError(conn.WriteJSON(map[string]string{"type": "subscribe", "group_id": groupID}))
		frame := readFrame(t, conn)
		req.Equal("snapshot", frame["type"], "subscribe %d: %v", i, frame)
		req.NoError(conn.WriteJSON(map[string]string{"type": "unsubscribe", "group_id": groupID}))
	}
}

func Test_Requests_Without_Token_Are_Rejected(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	resp, _ := fixture.do(t, http.MethodGet, "/api/groups", "", nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = fixture.do(t, http.MethodPost, "/api/groups", "not-a-jwt",
		map[string]string{"display_name": "Family"})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}
