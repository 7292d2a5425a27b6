package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitStamps_Single_Token_Body(t *testing.T) {
	req := require.New(t)

	segments := SplitStamps("[stamp:wave]")

	// A body that is exactly one token yields empty text on both sides
	req.Equal([]Segment{
		{Kind: SegmentText, Value: ""},
		{Kind: SegmentStamp, Value: "wave"},
		{Kind: SegmentText, Value: ""},
	}, segments)
}

func TestSplitStamps_Mixed_Text_And_Tokens(t *testing.T) {
	req := require.New(t)

	segments := SplitStamps("hello [stamp:cat] and [stamp:dog]!")

	req.Equal([]Segment{
		{Kind: SegmentText, Value: "hello "},
		{Kind: SegmentStamp, Value: "cat"},
		{Kind: SegmentText, Value: " and "},
		{Kind: SegmentStamp, Value: "dog"},
		{Kind: SegmentText, Value: "!"},
	}, segments)
}

func TestSplitStamps_No_Token(t *testing.T) {
	req := require.New(t)

	segments := SplitStamps("plain text")

	req.Equal([]Segment{{Kind: SegmentText, Value: "plain text"}}, segments)
}

func TestSplitStamps_Unknown_Names_Are_Not_Rejected(t *testing.T) {
	req := require.New(t)

	// Names are unresolved references; any name passes through to render time
	req.Equal([]string{"no-such-stamp"}, StampNames("[stamp:no-such-stamp]"))
}

func TestInsertStamp_At_End_And_At_Cursor(t *testing.T) {
	req := require.New(t)

	req.Equal("hi[stamp:wave]", InsertStamp("hi", "wave", -1))
	req.Equal("h[stamp:wave]i", InsertStamp("hi", "wave", 1))
	req.Equal("hi[stamp:wave]", InsertStamp("hi", "wave", 99))
}
