// Package search maintains a full-text index over appended messages.
// Indexing happens asynchronously through the event fanout, so a hit can lag
// an append by a moment. The index is derived state and can be rebuilt from
// the message log.
package search

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"stampchat/domain"
)

// Hit is one search result.
type Hit struct {
	MessageID uuid.UUID
	GroupID   uuid.UUID
	SenderID  string
	Body      string
	Score     float64
}

// Index wraps a bluge writer for message documents.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

// OpenInMemory backs the index with memory only. Used in tests.
func OpenInMemory(log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

// IndexMessage upserts one message document, keyed by message id.
func (i *Index) IndexMessage(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField("body", msg.Body).StoreValue()).
		AddField(bluge.NewKeywordField("group_id", msg.GroupID.String()).StoreValue()).
		AddField(bluge.NewKeywordField("sender_id", msg.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("lang", msg.Lang)).
		AddField(bluge.NewDateTimeField("created_at", msg.CreatedAt)).
		AddField(bluge.NewStoredOnlyField("seq", []byte(strconv.FormatUint(msg.Seq, 10))))

	return i.writer.Update(doc.ID(), doc)
}

// Search runs a parsed query and returns scored hits, best first.
func (i *Index) Search(ctx context.Context, query *Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	boolean := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query.Terms).SetField("body"))
	if query.GroupID != "" {
		boolean.AddMust(bluge.NewTermQuery(query.GroupID).SetField("group_id"))
	}
	if query.SenderID != "" {
		boolean.AddMust(bluge.NewTermQuery(query.SenderID).SetField("sender_id"))
	}

	request := bluge.NewTopNSearch(query.Limit, boolean)
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID, _ = uuid.Parse(string(value))
			case "group_id":
				hit.GroupID, _ = uuid.Parse(string(value))
			case "sender_id":
				hit.SenderID = string(value)
			case "body":
				hit.Body = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
