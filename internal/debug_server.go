package internal

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Kind      string
	Timestamp string
	EntityID  string
	Detail    string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer exposes a raw key browser over the store, grouped by key
// family (group:, code:, member:, msg:, user:). Development only, never
// mounted on the public listener.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, MapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

// MapRow renders one stored entry for the inspector.
func MapRow(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Kind:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	parts := strings.Split(key, ":")
	switch parts[0] {
	case "msg":
		row.Kind = "MESSAGE"
		if len(parts) >= 3 {
			row.EntityID = shorten(parts[1])
			if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
				row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
			}
		}
		var record struct {
			SenderID string `cbor:"sender_id"`
			Body     string `cbor:"body"`
		}
		if err := cbor.Unmarshal(val, &record); err == nil {
			row.Detail = record.SenderID + ": " + record.Body
		}

	case "group":
		row.Kind = "GROUP"
		if len(parts) >= 2 {
			row.EntityID = shorten(parts[1])
		}
		var record struct {
			DisplayName string   `cbor:"display_name"`
			JoinCode    string   `cbor:"join_code"`
			Members     []string `cbor:"members"`
		}
		if err := cbor.Unmarshal(val, &record); err == nil {
			row.Detail = fmt.Sprintf("%s [%s] %d member(s)",
				record.DisplayName, record.JoinCode, len(record.Members))
		}

	case "code":
		row.Kind = "JOIN_CODE"
		if len(parts) >= 2 {
			row.EntityID = parts[1]
		}
		row.Detail = "-> " + string(val)

	case "member":
		row.Kind = "MEMBERSHIP"
		if len(parts) >= 3 {
			row.EntityID = parts[1]
			row.Detail = "group " + shorten(parts[2])
		}

	case "user":
		row.Kind = "USER"
		if len(parts) >= 2 {
			row.EntityID = parts[1]
		}
		var record struct {
			DisplayName string `cbor:"display_name"`
		}
		if err := cbor.Unmarshal(val, &record); err == nil {
			row.Detail = record.DisplayName
		}
	}
	return row
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
