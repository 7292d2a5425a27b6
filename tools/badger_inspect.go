// Command badger_inspect dumps the chat store as a readable table.
// Usage: go run ./tools -db /path/to/badger -prefix msg:
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

type messageRecord struct {
	ID       string `cbor:"id"`
	SenderID string `cbor:"sender_id"`
	Body     string `cbor:"body"`
	Lang     string `cbor:"lang"`
	Seq      uint64 `cbor:"seq"`
}

type groupRecord struct {
	ID          string   `cbor:"id"`
	JoinCode    string   `cbor:"join_code"`
	DisplayName string   `cbor:"display_name"`
	Members     []string `cbor:"members"`
}

type userRecord struct {
	ID          string `cbor:"id"`
	Email       string `cbor:"email"`
	DisplayName string `cbor:"display_name"`
}

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, group:, code:, member:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Entity ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				table.Append(renderRow(key, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func renderRow(key string, val []byte) []string {
	parts := strings.Split(key, ":")
	kind := "RAW"
	timestamp := "--:--:--"
	entityID := "--------"
	detail := fmt.Sprintf("Size: %d bytes", len(val))

	switch parts[0] {
	case "msg":
		kind = "MESSAGE"
		if len(parts) >= 3 {
			entityID = shorten(parts[1])
			if tsNano, err := parseInt(parts[2]); err == nil {
				timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
			}
		}
		var record messageRecord
		if err := cbor.Unmarshal(val, &record); err == nil {
			detail = fmt.Sprintf("#%d %s: %s [%s]",
				record.Seq, record.SenderID, record.Body, record.Lang)
		}

	case "group":
		kind = "GROUP"
		var record groupRecord
		if err := cbor.Unmarshal(val, &record); err == nil {
			entityID = shorten(record.ID)
			detail = fmt.Sprintf("%s [%s] members=%s",
				record.DisplayName, record.JoinCode, strings.Join(record.Members, ","))
		}

	case "code":
		kind = "JOIN_CODE"
		if len(parts) >= 2 {
			entityID = parts[1]
		}
		detail = "-> " + string(val)

	case "member":
		kind = "MEMBERSHIP"
		if len(parts) >= 3 {
			entityID = parts[1]
			detail = "group " + shorten(parts[2])
		}

	case "user":
		kind = "USER"
		var record userRecord
		if err := cbor.Unmarshal(val, &record); err == nil {
			entityID = shorten(record.ID)
			detail = fmt.Sprintf("%s <%s>", record.DisplayName, record.Email)
		}
	}

	return []string{key, kind, timestamp, entityID, detail}
}

func parseInt(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
