package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

// dryRunStore opens the store against a dry-run session and exposes the SQL
// of the last query it built.
func dryRunStore(t *testing.T) (*GormStore, *string) {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	require.NoError(t, err)

	var lastSQL string
	err = db.Callback().Query().After("gorm:query").Register("capture_sql", func(tx *gorm.DB) {
		lastSQL = tx.Statement.SQL.String()
	})
	require.NoError(t, err)
	return New(db), &lastSQL
}

func TestActiveMembershipLocksRow(t *testing.T) {
	s, lastSQL := dryRunStore(t)

	_, _ = s.ActiveMembership(context.Background(), "user-1", "chan-1")

	assert.Contains(t, *lastSQL, "user_id = ? AND channel_id = ? AND is_active")
	assert.Contains(t, *lastSQL, "FOR UPDATE")
}

func TestEnsureUserLocksRow(t *testing.T) {
	s, lastSQL := dryRunStore(t)

	_, _ = s.EnsureUser(context.Background(), 555, "", "")

	assert.Contains(t, *lastSQL, "telegram_id = ?")
	assert.Contains(t, *lastSQL, "FOR UPDATE")
}

func TestPlainReadsDoNotLock(t *testing.T) {
	s, lastSQL := dryRunStore(t)

	_, _ = s.GetMembership(context.Background(), "m-1")

	assert.NotContains(t, *lastSQL, "FOR UPDATE")
}
