//go:build e2e

package e2e

import (
	"fmt"
	"net/http"
	"testing"
)

type retrieveResult struct {
	Sources []struct {
		EmbeddingID int64   `json:"embedding_id"`
		Content     string  `json:"content"`
		OwnerID     string  `json:"owner_id"`
		Shared      bool    `json:"shared"`
		Distance    float64 `json:"distance"`
	} `json:"sources"`
	Suggestions []struct {
		EmbeddingID int64   `json:"embedding_id"`
		OwnerID     string  `json:"owner_id"`
		OwnerName   string  `json:"owner_name"`
		OwnerEmail  string  `json:"owner_email"`
		Distance    float64 `json:"distance"`
	} `json:"suggestions"`
	Resources []struct {
		EmbeddingID int64  `json:"embedding_id"`
		ResourceID  int64  `json:"resource_id"`
		Content     string `json:"content"`
	} `json:"resources"`
}

type knowledgeRequest struct {
	ID          int64  `json:"id"`
	RequesterID string `json:"requester_id"`
	OwnerID     string `json:"owner_id"`
	EmbeddingID int64  `json:"embedding_id"`
	Question    string `json:"question"`
	Status      string `json:"status"`
	RespondedAt string `json:"responded_at"`
}

func appendMessage(t *testing.T, env *E2ETestEnv, token, content string) {
	t.Helper()
	resp, status, err := env.Post("/conversations/messages", map[string]string{
		"role":    "user",
		"content": content,
	}, token)
	if err != nil {
		t.Fatalf("append message failed: %v", err)
	}
	if status != http.StatusCreated {
		t.Fatalf("append message: expected 201, got %d (%s)", status, resp.Error)
	}
}

func retrieve(t *testing.T, env *E2ETestEnv, token, question string) retrieveResult {
	t.Helper()
	resp, status, err := env.Post("/retrieve", map[string]string{"question": question}, token)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("retrieve: expected 200, got %d (%s)", status, resp.Error)
	}
	var result retrieveResult
	env.MustDecode(resp, &result)
	return result
}

func TestE2E_SharingLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	users := env.Bootstrap("acme", "owner@acme.test", "requester@acme.test")
	owner, requester := users[0], users[1]

	const chunkContent = "Our postgres failover runs on patroni with two sync replicas in eu-west."
	appendMessage(t, env, owner.Token, chunkContent)
	env.ProcessEmbeddingJobs()

	// The requester has no knowledge of their own, so the chunk shows
	// up as a suggestion without content.
	question := "How does our postgres failover setup work?"
	result := retrieve(t, env, requester.Token, question)
	if len(result.Sources) != 0 {
		t.Fatalf("expected no direct sources, got %d", len(result.Sources))
	}
	if len(result.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(result.Suggestions))
	}
	suggestion := result.Suggestions[0]
	if suggestion.OwnerID != owner.ID {
		t.Fatalf("suggestion owner = %s, want %s", suggestion.OwnerID, owner.ID)
	}
	if suggestion.OwnerEmail != owner.Email {
		t.Fatalf("suggestion owner email = %s, want %s", suggestion.OwnerEmail, owner.Email)
	}

	// Request access to the suggested chunk.
	resp, status, err := env.Post("/knowledge/requests", map[string]interface{}{
		"embedding_id": suggestion.EmbeddingID,
		"question":     question,
	}, requester.Token)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if status != http.StatusCreated {
		t.Fatalf("create request: expected 201, got %d (%s)", status, resp.Error)
	}
	var created knowledgeRequest
	env.MustDecode(resp, &created)
	if created.Status != "pending" {
		t.Fatalf("request status = %s, want pending", created.Status)
	}
	if created.OwnerID != owner.ID {
		t.Fatalf("request owner = %s, want %s", created.OwnerID, owner.ID)
	}

	// The owner has a durable notification for the request.
	resp, status, err = env.Get("/notifications/unread", owner.Token)
	if err != nil || status != http.StatusOK {
		t.Fatalf("unread count failed: %v (status %d)", err, status)
	}
	var unread struct {
		Count int64 `json:"count"`
	}
	env.MustDecode(resp, &unread)
	if unread.Count != 1 {
		t.Fatalf("owner unread count = %d, want 1", unread.Count)
	}

	// The owner approves; status, grant, and requester notification
	// all land atomically.
	resp, status, err = env.Post("/knowledge/requests/respond", map[string]interface{}{
		"request_id": created.ID,
		"decision":   "approve",
	}, owner.Token)
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("respond: expected 200, got %d (%s)", status, resp.Error)
	}
	var resolved knowledgeRequest
	env.MustDecode(resp, &resolved)
	if resolved.Status != "approved" {
		t.Fatalf("resolved status = %s, want approved", resolved.Status)
	}
	if resolved.RespondedAt == "" {
		t.Fatal("resolved request missing responded_at")
	}

	var grantCount int
	if err := env.Pool.QueryRow(env.Ctx,
		"SELECT COUNT(*) FROM knowledge_shares WHERE embedding_id = $1 AND shared_with_user_id = $2",
		suggestion.EmbeddingID, requester.ID,
	).Scan(&grantCount); err != nil {
		t.Fatalf("failed to count grants: %v", err)
	}
	if grantCount != 1 {
		t.Fatalf("grant count = %d, want 1", grantCount)
	}

	// The chunk content is now readable as a shared source.
	result = retrieve(t, env, requester.Token, question)
	if len(result.Sources) != 1 {
		t.Fatalf("expected 1 shared source, got %d", len(result.Sources))
	}
	source := result.Sources[0]
	if !source.Shared {
		t.Fatal("expected source to be marked shared")
	}
	if source.Content != chunkContent {
		t.Fatalf("source content = %q, want %q", source.Content, chunkContent)
	}
	if len(result.Suggestions) != 0 {
		t.Fatalf("expected no suggestions after approval, got %d", len(result.Suggestions))
	}

	// Requester got the resolution notification.
	resp, status, _ = env.Get("/notifications?unread=true", requester.Token)
	if status != http.StatusOK {
		t.Fatalf("list notifications: expected 200, got %d", status)
	}
	var notifications []struct {
		Type    string                 `json:"type"`
		Payload map[string]interface{} `json:"payload"`
	}
	env.MustDecode(resp, &notifications)
	if len(notifications) != 1 {
		t.Fatalf("requester notifications = %d, want 1", len(notifications))
	}
	if notifications[0].Type != "knowledge_approved" {
		t.Fatalf("notification type = %s, want knowledge_approved", notifications[0].Type)
	}
}

func TestE2E_RequestPreconditionsAndDenial(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	users := env.Bootstrap("acme", "owner@acme.test", "requester@acme.test", "bystander@acme.test")
	owner, requester, bystander := users[0], users[1], users[2]

	appendMessage(t, env, owner.Token, "The kubernetes ingress uses cert-manager with a wildcard certificate.")
	env.ProcessEmbeddingJobs()

	question := "How is the kubernetes ingress certificate managed?"
	result := retrieve(t, env, requester.Token, question)
	if len(result.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(result.Suggestions))
	}
	embeddingID := result.Suggestions[0].EmbeddingID

	// Owners cannot request their own knowledge.
	_, status, _ := env.Post("/knowledge/requests", map[string]interface{}{
		"embedding_id": embeddingID,
		"question":     question,
	}, owner.Token)
	if status != http.StatusConflict {
		t.Fatalf("own-knowledge request: expected 409, got %d", status)
	}

	// Unknown chunks return 404.
	_, status, _ = env.Post("/knowledge/requests", map[string]interface{}{
		"embedding_id": 999999,
		"question":     question,
	}, requester.Token)
	if status != http.StatusNotFound {
		t.Fatalf("missing chunk request: expected 404, got %d", status)
	}

	resp, status, _ := env.Post("/knowledge/requests", map[string]interface{}{
		"embedding_id": embeddingID,
		"question":     question,
	}, requester.Token)
	if status != http.StatusCreated {
		t.Fatalf("create request: expected 201, got %d (%s)", status, resp.Error)
	}
	var created knowledgeRequest
	env.MustDecode(resp, &created)

	// A second pending request for the same chunk is rejected.
	_, status, _ = env.Post("/knowledge/requests", map[string]interface{}{
		"embedding_id": embeddingID,
		"question":     "asking again",
	}, requester.Token)
	if status != http.StatusConflict {
		t.Fatalf("duplicate request: expected 409, got %d", status)
	}

	// Only the owner may respond.
	_, status, _ = env.Post("/knowledge/requests/respond", map[string]interface{}{
		"request_id": created.ID,
		"decision":   "approve",
	}, bystander.Token)
	if status != http.StatusNotFound {
		t.Fatalf("non-owner respond: expected 404, got %d", status)
	}

	// Denial resolves the request without creating a grant.
	resp, status, _ = env.Post("/knowledge/requests/respond", map[string]interface{}{
		"request_id":       created.ID,
		"decision":         "deny",
		"response_content": "This is on a need-to-know basis.",
	}, owner.Token)
	if status != http.StatusOK {
		t.Fatalf("deny: expected 200, got %d (%s)", status, resp.Error)
	}
	var denied knowledgeRequest
	env.MustDecode(resp, &denied)
	if denied.Status != "denied" {
		t.Fatalf("denied status = %s, want denied", denied.Status)
	}

	var grantCount int
	if err := env.Pool.QueryRow(env.Ctx,
		"SELECT COUNT(*) FROM knowledge_shares WHERE shared_with_user_id = $1", requester.ID,
	).Scan(&grantCount); err != nil {
		t.Fatalf("failed to count grants: %v", err)
	}
	if grantCount != 0 {
		t.Fatalf("grant count after denial = %d, want 0", grantCount)
	}

	// A resolved request cannot be re-resolved.
	_, status, _ = env.Post("/knowledge/requests/respond", map[string]interface{}{
		"request_id": created.ID,
		"decision":   "approve",
	}, owner.Token)
	if status != http.StatusNotFound {
		t.Fatalf("respond twice: expected 404, got %d", status)
	}

	// After denial the requester may ask again.
	_, status, _ = env.Post("/knowledge/requests", map[string]interface{}{
		"embedding_id": embeddingID,
		"question":     question,
	}, requester.Token)
	if status != http.StatusCreated {
		t.Fatalf("request after denial: expected 201, got %d", status)
	}
}

func TestE2E_OwnKnowledgeAndResources(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	users := env.Bootstrap("acme", "dev@acme.test")
	dev := users[0]

	appendMessage(t, env, dev.Token, "Billing invoices are generated nightly by the billing cron at 02:00 UTC.")
	env.ProcessEmbeddingJobs()

	// Own chunks come back with content, never as suggestions.
	result := retrieve(t, env, dev.Token, "When does the billing cron run?")
	if len(result.Sources) != 1 {
		t.Fatalf("expected 1 own source, got %d", len(result.Sources))
	}
	if result.Sources[0].Shared {
		t.Fatal("own chunk must not be marked shared")
	}
	if len(result.Suggestions) != 0 {
		t.Fatalf("expected no suggestions, got %d", len(result.Suggestions))
	}

	// Org resources match for every member.
	resp, status, err := env.Post("/resources", map[string]string{
		"content": "Billing escalations go to the #billing-oncall rotation.",
	}, dev.Token)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("create resource: %v (status %d)", err, status)
	}
	var resource struct {
		ID int64 `json:"id"`
	}
	env.MustDecode(resp, &resource)

	result = retrieve(t, env, dev.Token, "Who handles billing escalations?")
	if len(result.Resources) == 0 {
		t.Fatal("expected resource match")
	}

	// Soft-deleted resources stop matching.
	_, status, _ = env.Delete(fmt.Sprintf("/resources/%d", resource.ID), dev.Token)
	if status != http.StatusNoContent {
		t.Fatalf("delete resource: expected 204, got %d", status)
	}
	result = retrieve(t, env, dev.Token, "Who handles billing escalations?")
	if len(result.Resources) != 0 {
		t.Fatalf("expected no resource matches after delete, got %d", len(result.Resources))
	}
}

func TestE2E_RequestListing(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	users := env.Bootstrap("acme", "owner@acme.test", "requester@acme.test")
	owner, requester := users[0], users[1]

	appendMessage(t, env, owner.Token, "The postgres connection pooler is pgbouncer in transaction mode.")
	env.ProcessEmbeddingJobs()

	result := retrieve(t, env, requester.Token, "What postgres connection pooler do we use?")
	if len(result.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(result.Suggestions))
	}

	_, status, _ := env.Post("/knowledge/requests", map[string]interface{}{
		"embedding_id": result.Suggestions[0].EmbeddingID,
		"question":     "What postgres connection pooler do we use?",
	}, requester.Token)
	if status != http.StatusCreated {
		t.Fatalf("create request: expected 201, got %d", status)
	}

	type requestDetail struct {
		knowledgeRequest
		RequesterEmail string `json:"requester_email"`
		OwnerEmail     string `json:"owner_email"`
		ChunkContent   string `json:"chunk_content"`
	}

	// Received direction shows the owner their inbox with chunk context.
	resp, status, _ := env.Get("/knowledge/requests?type=received&status=pending", owner.Token)
	if status != http.StatusOK {
		t.Fatalf("list received: expected 200, got %d", status)
	}
	var received []requestDetail
	env.MustDecode(resp, &received)
	if len(received) != 1 {
		t.Fatalf("received requests = %d, want 1", len(received))
	}
	if received[0].RequesterEmail != requester.Email {
		t.Fatalf("requester email = %s, want %s", received[0].RequesterEmail, requester.Email)
	}
	if received[0].ChunkContent == "" {
		t.Fatal("expected chunk content in owner's listing")
	}

	// Sent direction shows the requester their outbox.
	resp, status, _ = env.Get("/knowledge/requests?type=sent", requester.Token)
	if status != http.StatusOK {
		t.Fatalf("list sent: expected 200, got %d", status)
	}
	var sent []requestDetail
	env.MustDecode(resp, &sent)
	if len(sent) != 1 {
		t.Fatalf("sent requests = %d, want 1", len(sent))
	}
	if sent[0].OwnerEmail != owner.Email {
		t.Fatalf("owner email = %s, want %s", sent[0].OwnerEmail, owner.Email)
	}

	// The owner sees nothing in their sent box.
	resp, status, _ = env.Get("/knowledge/requests?type=sent", owner.Token)
	if status != http.StatusOK {
		t.Fatalf("owner sent: expected 200, got %d", status)
	}
	var ownerSent []requestDetail
	env.MustDecode(resp, &ownerSent)
	if len(ownerSent) != 0 {
		t.Fatalf("owner sent requests = %d, want 0", len(ownerSent))
	}
}

func TestE2E_AuthLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	users := env.Bootstrap("acme", "admin@acme.test")
	admin := users[0]

	// Requests without credentials are rejected.
	_, status, _ := env.Get("/notifications/unread", "")
	if status != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", status)
	}

	// Create a colleague over the API and mint them a key.
	resp, status, _ := env.Post("/users", map[string]string{
		"name":  "Colleague",
		"email": "colleague@acme.test",
	}, admin.Token)
	if status != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d (%s)", status, resp.Error)
	}
	var colleague struct {
		ID string `json:"id"`
	}
	env.MustDecode(resp, &colleague)

	token, err := env.authSvc.CreateAPIKey(env.Ctx, colleague.ID, "colleague-key")
	if err != nil {
		t.Fatalf("failed to create colleague key: %v", err)
	}

	_, status, _ = env.Get("/notifications/unread", token)
	if status != http.StatusOK {
		t.Fatalf("colleague token: expected 200, got %d", status)
	}

	// Revoking the key locks the colleague out.
	resp, status, _ = env.Get("/apikeys", admin.Token)
	if status != http.StatusOK {
		t.Fatalf("list keys: expected 200, got %d", status)
	}
	var keys []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Revoked bool   `json:"revoked"`
	}
	env.MustDecode(resp, &keys)

	var colleagueKeyID string
	for _, k := range keys {
		if k.Name == "colleague-key" {
			colleagueKeyID = k.ID
		}
	}
	if colleagueKeyID == "" {
		t.Fatal("colleague key not found in listing")
	}

	_, status, _ = env.Delete("/apikeys/"+colleagueKeyID, admin.Token)
	if status != http.StatusNoContent {
		t.Fatalf("revoke key: expected 204, got %d", status)
	}

	_, status, _ = env.Get("/notifications/unread", token)
	if status != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", status)
	}
}
