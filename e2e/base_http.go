package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests.
// Without a SERVER_ADDR the whole suite is skipped: e2e runs against a
// deployed server, never an in-process one.
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping e2e suite")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header so scenario phases stand out in the logs.
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// DoJSON performs one API call and decodes the response body.
func (s *BaseHTTPSuite) DoJSON(method, path, token string, body any) (*http.Response, map[string]any) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}

	url := "http://" + s.Config.ServerAddr + path
	req, err := http.NewRequest(method, url, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err)

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	resp.Body.Close()

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	decoded := map[string]any{}
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

// Register creates a fresh account and returns its bearer token.
func (s *BaseHTTPSuite) Register(email, displayName string) string {
	resp, body := s.DoJSON(http.MethodPost, "/api/register", "", map[string]string{
		"email":        email,
		"password":     "ComplexPass123!",
		"display_name": displayName,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return body["token"].(string)
}

// DialWS opens the live socket for a token.
func (s *BaseHTTPSuite) DialWS(token string) *websocket.Conn {
	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.ServerAddr, token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

// ReadFrame reads one frame with a deadline, decoded as a generic map.
func (s *BaseHTTPSuite) ReadFrame(conn *websocket.Conn, timeout time.Duration) map[string]any {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(timeout)))
	var frame map[string]any
	s.Require().NoError(conn.ReadJSON(&frame))
	return frame
}
