package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-code-review/internal/models"
	"github.com/noah-isme/gema-code-review/pkg/reviewapi"
)

func newTestRepository(t *testing.T, ttl time.Duration) (SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSessionRepository(client, "test", ttl), mr
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	repo, mr := newTestRepository(t, time.Hour)
	ctx := context.Background()

	input := models.NewInputState()
	input.SetCode("print(1)")
	input.SetFile(models.FileHandle{Name: "main.py", Content: []byte("x = 1")})

	snapshot := models.SessionSnapshot{
		SessionID: "abc",
		Input:     input,
		Submission: models.SubmissionState{
			Phase:   models.PhaseSucceeded,
			Attempt: 2,
			Result: &reviewapi.AnalysisResult{
				OverallScore: 85,
				Breakdown:    reviewapi.Breakdown{{Category: "style", Score: 90}, {Category: "security", Score: 80}},
			},
		},
	}
	require.NoError(t, repo.Save(ctx, snapshot))
	require.True(t, mr.Exists("test:session:abc"))

	loaded, found, err := repo.Load(ctx, "abc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "print(1)", loaded.Input.Code)
	require.Equal(t, models.InputModeFile, loaded.Input.Mode)
	require.Equal(t, []byte("x = 1"), loaded.Input.File.Content)
	require.Equal(t, models.PhaseSucceeded, loaded.Submission.Phase)
	require.Equal(t, "style", loaded.Submission.Result.Breakdown[0].Category)
	require.Equal(t, "security", loaded.Submission.Result.Breakdown[1].Category)
}

func TestSessionRepositoryExpires(t *testing.T) {
	repo, mr := newTestRepository(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, models.SessionSnapshot{SessionID: "gone", Input: models.NewInputState()}))
	mr.FastForward(2 * time.Minute)

	_, found, err := repo.Load(ctx, "gone")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSessionRepositoryDelete(t *testing.T) {
	repo, _ := newTestRepository(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, models.SessionSnapshot{SessionID: "abc"}))
	require.NoError(t, repo.Delete(ctx, "abc"))

	_, found, err := repo.Load(ctx, "abc")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSessionRepositoryRequiresID(t *testing.T) {
	repo, _ := newTestRepository(t, time.Minute)
	require.Error(t, repo.Save(context.Background(), models.SessionSnapshot{}))
}
