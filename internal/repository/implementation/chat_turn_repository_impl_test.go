package implementation

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"literature-agent-be/internal/entity"
	"literature-agent-be/internal/model"
	"literature-agent-be/internal/repository/specification"
	"literature-agent-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres when DB_CONNECTION_STRING is set
func TestChatTurnRepositoryIntegration(t *testing.T) {
	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.ChatTurn{}))

	ctx := context.Background()
	repo := NewChatTurnRepository(gormDB)
	sessionID := "it-" + uuid.NewString()
	t.Cleanup(func() {
		gormDB.Where("session_id = ?", sessionID).Delete(&model.ChatTurn{})
	})

	base := time.Now().UTC().Truncate(time.Millisecond)
	var turns []*entity.ChatTurn
	for i := 0; i < 6; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		turns = append(turns, &entity.ChatTurn{
			Id:        uuid.New(),
			SessionId: sessionID,
			Role:      role,
			Text:      string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, repo.CreateBulk(ctx, turns))

	count, err := repo.Count(ctx, specification.BySessionID{SessionID: sessionID})
	require.NoError(t, err)
	assert.EqualValues(t, 6, count)

	users, err := repo.FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByRole{Role: "user"},
		specification.OrderBy{Field: "created_at"},
	)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a", users[0].Text)

	deleted, err := repo.TrimSession(ctx, sessionID, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	left, err := repo.FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OrderBy{Field: "created_at"},
	)
	require.NoError(t, err)
	require.Len(t, left, 4)
	assert.Equal(t, "c", left[0].Text)
	assert.Equal(t, "f", left[3].Text)
}
