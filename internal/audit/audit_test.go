package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogTagsAuditEntries(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), zerolog.New(&buf))

	Log(ctx, ActionJoinRoom, "u1", "lobby", "joined room")

	entry := decode(t, &buf)
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionJoinRoom, entry[FieldAction])
	assert.Equal(t, "u1", entry[log.FieldUserID])
	assert.Equal(t, "lobby", entry[log.FieldRoomID])
	assert.Equal(t, "joined room", entry["message"])
}

func TestLogOmitsEmptyRoom(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), zerolog.New(&buf))

	LogWithDetail(ctx, ActionAuthFailed, "", "", "bad signature", "authentication failed")

	entry := decode(t, &buf)
	assert.Equal(t, "bad signature", entry[FieldDetail])
	_, ok := entry[log.FieldRoomID]
	assert.False(t, ok)
}
