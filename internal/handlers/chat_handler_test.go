package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bodhgriha/marketplace/internal/handlers/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
)

type messagePayload struct {
	ID         string  `json:"id"`
	SenderID   string  `json:"sender_id"`
	ReceiverID string  `json:"receiver_id"`
	Body       string  `json:"body"`
	ReadAt     *string `json:"read_at"`
}

func TestChatConversationFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	alice, aliceToken := env.LoginUser(t, "alice@bodhgriha.test", "password-123", models.RoleMember)
	bob, bobToken := env.LoginUser(t, "bob@bodhgriha.test", "password-123", models.RoleInstructor)

	rec := env.Request(t, http.MethodPost, "/api/chat/messages", map[string]any{
		"receiver_id": bob.ID,
		"body":        "Is there space in the morning class?",
	}, aliceToken)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.Request(t, http.MethodPost, "/api/chat/messages", map[string]any{
		"receiver_id": alice.ID,
		"body":        "Yes, two seats left.",
	}, bobToken)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.Request(t, http.MethodGet, "/api/chat/conversations/"+bob.ID, nil, aliceToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []messagePayload
	testutil.DecodeData(t, rec, &messages)
	require.Len(t, messages, 2)

	rec = env.Request(t, http.MethodGet, "/api/chat/unread", nil, aliceToken)
	var unread struct {
		Unread int64 `json:"unread"`
	}
	testutil.DecodeData(t, rec, &unread)
	require.Equal(t, int64(1), unread.Unread)

	rec = env.Request(t, http.MethodPost, "/api/chat/conversations/"+bob.ID+"/read", nil, aliceToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodGet, "/api/chat/unread", nil, aliceToken)
	testutil.DecodeData(t, rec, &unread)
	require.Zero(t, unread.Unread)
}

func TestChatConversationSummaries(t *testing.T) {
	env := testutil.NewEnv(t)
	_, aliceToken := env.LoginUser(t, "summary-a@bodhgriha.test", "password-123", models.RoleMember)
	bob, bobToken := env.LoginUser(t, "summary-b@bodhgriha.test", "password-123", models.RoleMember)

	for _, body := range []string{"first", "second"} {
		rec := env.Request(t, http.MethodPost, "/api/chat/messages", map[string]any{
			"receiver_id": bob.ID,
			"body":        body,
		}, aliceToken)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.Request(t, http.MethodGet, "/api/chat/conversations", nil, bobToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []struct {
		PartnerID   string         `json:"partner_id"`
		LastMessage messagePayload `json:"last_message"`
		Unread      int64          `json:"unread"`
	}
	testutil.DecodeData(t, rec, &summaries)
	require.Len(t, summaries, 1)
	require.Equal(t, "second", summaries[0].LastMessage.Body)
	require.Equal(t, int64(2), summaries[0].Unread)
}

func TestChatRejectsMessageToSelf(t *testing.T) {
	env := testutil.NewEnv(t)
	me, token := env.LoginUser(t, "solo@bodhgriha.test", "password-123", models.RoleMember)

	rec := env.Request(t, http.MethodPost, "/api/chat/messages", map[string]any{
		"receiver_id": me.ID,
		"body":        "note to self",
	}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRequiresAuth(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Request(t, http.MethodGet, "/api/chat/conversations", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
