package intake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadintake/pkg/models"
)

func newConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{
		SessionID:   id,
		ProjectType: "Kitchen",
		Stage:       StageAwaitingBudget,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	conv := newConversation("s1")
	require.NoError(t, s.Create(ctx, conv))
	assert.Equal(t, int64(1), conv.Version)
	assert.ErrorIs(t, s.Create(ctx, newConversation("s1")), ErrSessionExists)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	got.Stage = StageAwaitingTimeline
	require.NoError(t, s.Save(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	// conv still carries version 1.
	assert.ErrorIs(t, s.Save(ctx, conv), ErrVersionConflict)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.Save(ctx, got), ErrSessionNotFound)
}

func TestMemoryStoreReplacesCompleted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv := newConversation("s1")
	require.NoError(t, s.Create(ctx, conv))
	conv.Stage = StageComplete
	require.NoError(t, s.Save(ctx, conv))

	fresh := newConversation("s1")
	fresh.ProjectType = "Deck"
	require.NoError(t, s.Create(ctx, fresh))
	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Deck", got.ProjectType)
	assert.Equal(t, StageAwaitingBudget, got.Stage)
	assert.Equal(t, int64(1), got.Version)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv := newConversation("s1")
	conv.addTurn(RoleAssistant, "hello", time.Now())
	require.NoError(t, s.Create(ctx, conv))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	budget := models.BudgetHigh
	got.Budget = &budget
	got.Transcript[0].Text = "changed"

	again, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, again.Budget)
	assert.Equal(t, "hello", again.Transcript[0].Text)
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	s.now = func() time.Time { return now }

	live := newConversation("live")
	live.ExpiresAt = now.Add(time.Minute)
	stale := newConversation("stale")
	stale.ExpiresAt = now.Add(-time.Minute)
	forever := newConversation("forever")
	forever.ExpiresAt = time.Time{}

	for _, c := range []*Conversation{live, stale, forever} {
		require.NoError(t, s.Create(ctx, c))
	}
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Sweep())
	_, err := s.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryStoreJanitor(t *testing.T) {
	s := NewMemoryStore()
	conv := newConversation("s1")
	conv.ExpiresAt = time.Now().Add(-time.Second)
	s.convs["s1"] = conv

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.convs) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
}

func TestLoadPrompts(t *testing.T) {
	p, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts(), p)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("budget: \"Budget for your {project_type}?\"\ndone: Bye\n"), 0644))

	p, err = LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Budget for your {project_type}?", p.Budget)
	assert.Equal(t, "Bye", p.Done)
	assert.Equal(t, DefaultPrompts().Timeline, p.Timeline)
	assert.Equal(t, "Budget for your deck?", p.forStage(StageAwaitingBudget, "Deck"))

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("budget: [unclosed"), 0644))
	_, err = LoadPrompts(path)
	assert.Error(t, err)
}

// fakeDynamo keeps a single-table map and evaluates the two condition
// expressions DynamoStore issues.
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	getErr  error
	lastPut *dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pkOf(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value
}

func numOf(item map[string]types.AttributeValue, name string) (int64, bool) {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	n, _ := strconv.ParseInt(v.Value, 10, 64)
	return n, true
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPut = in
	pk := pkOf(in.Item)
	existing, exists := f.items[pk]

	switch aws.ToString(in.ConditionExpression) {
	case createCondition:
		now, _ := numOf(in.ExpressionAttributeValues, ":now")
		ttl, hasTTL := numOf(existing, "ttl")
		stage, _ := existing["stage"].(*types.AttributeValueMemberS)
		complete := stage != nil && stage.Value == string(StageComplete)
		if exists && !(hasTTL && ttl <= now) && !complete {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	case "attribute_exists(PK) AND version = :expected":
		expected, _ := numOf(in.ExpressionAttributeValues, ":expected")
		current, _ := numOf(existing, "version")
		if !exists || current != expected {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("version")}
		}
	}
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, pkOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestNewDynamoStoreValidation(t *testing.T) {
	_, err := NewDynamoStore(nil, "table")
	assert.Error(t, err)
	_, err = NewDynamoStore(newFakeDynamo(), " ")
	assert.Error(t, err)
}

func TestDynamoStoreLifecycle(t *testing.T) {
	db := newFakeDynamo()
	s, err := NewDynamoStore(db, "conversations")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	conv := newConversation("s1")
	conv.ContractorID = int64Ptr(5)
	conv.addTurn(RoleAssistant, "What budget?", time.Now())
	require.NoError(t, s.Create(ctx, conv))
	assert.Equal(t, "conversations", aws.ToString(db.lastPut.TableName))
	ttl, ok := numOf(db.lastPut.Item, "ttl")
	require.True(t, ok)
	assert.Equal(t, conv.ExpiresAt.Unix(), ttl)

	assert.ErrorIs(t, s.Create(ctx, newConversation("s1")), ErrSessionExists)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, int64(5), *got.ContractorID)
	require.Len(t, got.Transcript, 1)

	budget := models.BudgetHigh
	got.Budget = &budget
	got.Stage = StageAwaitingTimeline
	require.NoError(t, s.Save(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	assert.ErrorIs(t, s.Save(ctx, conv), ErrVersionConflict)

	again, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingTimeline, again.Stage)
	assert.Equal(t, models.BudgetHigh, *again.Budget)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDynamoStoreExpiredItems(t *testing.T) {
	db := newFakeDynamo()
	s, err := NewDynamoStore(db, "conversations")
	require.NoError(t, err)
	ctx := context.Background()

	conv := newConversation("s1")
	conv.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.Create(ctx, conv))

	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Not yet reaped by TTL, but replaceable.
	assert.NoError(t, s.Create(ctx, newConversation("s1")))
}

func TestDynamoStoreReplacesCompleted(t *testing.T) {
	db := newFakeDynamo()
	s, err := NewDynamoStore(db, "conversations")
	require.NoError(t, err)
	ctx := context.Background()

	conv := newConversation("s1")
	require.NoError(t, s.Create(ctx, conv))
	assert.ErrorIs(t, s.Create(ctx, newConversation("s1")), ErrSessionExists)

	conv.Stage = StageComplete
	require.NoError(t, s.Save(ctx, conv))
	require.NoError(t, s.Create(ctx, newConversation("s1")))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingBudget, got.Stage)
}

func TestDynamoStoreWrapsErrors(t *testing.T) {
	db := newFakeDynamo()
	db.getErr = errors.New("throttled")
	s, err := NewDynamoStore(db, "conversations")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), "throttled")
}

func TestServiceOverDynamoStore(t *testing.T) {
	db := newFakeDynamo()
	store, err := NewDynamoStore(db, "conversations")
	require.NoError(t, err)
	f := newFixture(t, func(o *ServiceOptions) { o.Store = store })

	walkToContact(t, f.svc, "s1", "HIGH", "ASAP")
	lead, err := f.svc.Complete(context.Background(), "s1", Contact{Name: "Jane", Email: "jane@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 6, lead.Score)

	_, err = f.svc.Complete(context.Background(), "s1", Contact{Name: "Jane", Email: "jane@x.com"})
	assert.ErrorIs(t, err, ErrConversationComplete)
}
