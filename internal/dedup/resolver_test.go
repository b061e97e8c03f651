package dedup

import (
	"context"
	"errors"
	"testing"

	"cv-ingest-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLookup 函数字段式的查找桩，未设置的方法返回空结果
type mockLookup struct {
	byHash       func(ctx context.Context, contentHash string) (*ExistingCandidate, error)
	bySoftID     func(ctx context.Context, softID string) ([]*ExistingCandidate, error)
	byNamePhone  func(ctx context.Context, firstName, lastName string) ([]*ExistingCandidate, error)
	namePhoneHit int
}

func (m *mockLookup) FindByContentHash(ctx context.Context, contentHash string) (*ExistingCandidate, error) {
	if m.byHash != nil {
		return m.byHash(ctx, contentHash)
	}
	return nil, nil
}

func (m *mockLookup) FindBySoftID(ctx context.Context, softID string) ([]*ExistingCandidate, error) {
	if m.bySoftID != nil {
		return m.bySoftID(ctx, softID)
	}
	return nil, nil
}

func (m *mockLookup) FindByNameAndPhone(ctx context.Context, firstName, lastName string) ([]*ExistingCandidate, error) {
	m.namePhoneHit++
	if m.byNamePhone != nil {
		return m.byNamePhone(ctx, firstName, lastName)
	}
	return nil, nil
}

func newTestResolver(lookup CandidateLookup) *Resolver {
	return NewResolver(lookup, testScorer(), zerolog.Nop())
}

func incomingCandidate(fileModifiedDaysAgo int) *types.IncomingCandidate {
	return &types.IncomingCandidate{
		Parsed: &types.ParsedResume{
			FirstName:   "John",
			LastName:    "Doe",
			PhoneNumber: "+1-212-555-0100",
		},
		ContentHash:    "abc123",
		PersonSoftID:   "deadbeef00112233",
		FileModifiedAt: daysAgo(fileModifiedDaysAgo),
		UploadedAt:     fixedNow,
	}
}

func TestResolveIdenticalContentHash(t *testing.T) {
	lookup := &mockLookup{
		byHash: func(ctx context.Context, contentHash string) (*ExistingCandidate, error) {
			assert.Equal(t, "abc123", contentHash)
			return &ExistingCandidate{SubmissionUUID: "uuid-1", FullName: "John Doe"}, nil
		},
	}
	r := newTestResolver(lookup)

	decision, err := r.Resolve(context.Background(), incomingCandidate(1))
	require.NoError(t, err)

	assert.Equal(t, types.DecisionIdentical, decision.Outcome, "内容指纹命中应判定为完全相同")
	assert.Equal(t, "uuid-1", decision.ConflictingUUID)
	assert.Contains(t, decision.Message, "John Doe", "判定消息应包含已有记录的姓名")
}

func TestResolveReplaceWhenIncomingFresher(t *testing.T) {
	lookup := &mockLookup{
		bySoftID: func(ctx context.Context, softID string) ([]*ExistingCandidate, error) {
			return []*ExistingCandidate{{
				SubmissionUUID: "uuid-old",
				FullName:       "John Doe",
				FileModifiedAt: daysAgo(200),
				UploadedAt:     *daysAgo(200),
			}}, nil
		},
	}
	r := newTestResolver(lookup)

	decision, err := r.Resolve(context.Background(), incomingCandidate(1))
	require.NoError(t, err)

	assert.Equal(t, types.DecisionReplace, decision.Outcome, "新记录更新鲜时应判定为取代")
	assert.Equal(t, "uuid-old", decision.ConflictingUUID)
}

func TestResolveOlderWhenExistingFresher(t *testing.T) {
	lookup := &mockLookup{
		bySoftID: func(ctx context.Context, softID string) ([]*ExistingCandidate, error) {
			return []*ExistingCandidate{{
				SubmissionUUID: "uuid-new",
				FullName:       "John Doe",
				FileModifiedAt: daysAgo(1),
				UploadedAt:     fixedNow,
			}}, nil
		},
	}
	r := newTestResolver(lookup)

	decision, err := r.Resolve(context.Background(), incomingCandidate(300))
	require.NoError(t, err)

	assert.Equal(t, types.DecisionOlder, decision.Outcome, "已有记录更新鲜时应判定为过时")
	assert.Equal(t, "uuid-new", decision.ConflictingUUID)
}

func TestResolveTieFavorsExisting(t *testing.T) {
	// 分数完全相同时保留已有记录，它已经被接受过
	existing := &ExistingCandidate{
		SubmissionUUID: "uuid-tie",
		FullName:       "John Doe",
		FileModifiedAt: daysAgo(5),
		UploadedAt:     fixedNow,
	}
	lookup := &mockLookup{
		bySoftID: func(ctx context.Context, softID string) ([]*ExistingCandidate, error) {
			return []*ExistingCandidate{existing}, nil
		},
	}
	r := newTestResolver(lookup)

	decision, err := r.Resolve(context.Background(), incomingCandidate(5))
	require.NoError(t, err)

	assert.Equal(t, types.DecisionOlder, decision.Outcome, "同分时不应取代已有记录")
}

func TestResolvePicksFreshestAmongMatches(t *testing.T) {
	lookup := &mockLookup{
		bySoftID: func(ctx context.Context, softID string) ([]*ExistingCandidate, error) {
			return []*ExistingCandidate{
				{SubmissionUUID: "uuid-older", FullName: "John Doe", FileModifiedAt: daysAgo(400), UploadedAt: *daysAgo(400)},
				{SubmissionUUID: "uuid-newest", FullName: "John Doe", FileModifiedAt: daysAgo(2), UploadedAt: *daysAgo(2)},
			}, nil
		},
	}
	r := newTestResolver(lookup)

	decision, err := r.Resolve(context.Background(), incomingCandidate(100))
	require.NoError(t, err)

	assert.Equal(t, types.DecisionOlder, decision.Outcome)
	assert.Equal(t, "uuid-newest", decision.ConflictingUUID, "应与最新鲜的已有记录比较")
}

func TestResolveKeepWhenNoMatches(t *testing.T) {
	lookup := &mockLookup{}
	r := newTestResolver(lookup)

	decision, err := r.Resolve(context.Background(), incomingCandidate(1))
	require.NoError(t, err)

	assert.Equal(t, types.DecisionKeep, decision.Outcome, "无任何命中时应保留为新记录")
	assert.Empty(t, decision.ConflictingUUID)
	assert.Equal(t, 1, lookup.namePhoneHit, "软标识未命中时应走宽松回退")
}

func TestResolveLooseFallbackFiltersByPhone(t *testing.T) {
	lookup := &mockLookup{
		byNamePhone: func(ctx context.Context, firstName, lastName string) ([]*ExistingCandidate, error) {
			return []*ExistingCandidate{
				// 同名但电话完全不同，不是同一个人
				{SubmissionUUID: "uuid-other", FullName: "John Doe", PhoneNumber: "+44-20-7946-0000", UploadedAt: *daysAgo(10)},
				// 同名且末7位相同，区号不同的同一人
				{SubmissionUUID: "uuid-same", FullName: "John Doe", PhoneNumber: "310-555-0100", FileModifiedAt: daysAgo(400), UploadedAt: *daysAgo(400)},
			}, nil
		},
	}
	r := newTestResolver(lookup)

	decision, err := r.Resolve(context.Background(), incomingCandidate(1))
	require.NoError(t, err)

	assert.Equal(t, types.DecisionReplace, decision.Outcome, "电话相似的宽松命中应进入新鲜度比较")
	assert.Equal(t, "uuid-same", decision.ConflictingUUID, "电话不相似的同名记录应被过滤")
}

func TestResolveLooseFallbackLowercasesNames(t *testing.T) {
	// 大小写不敏感由判定器自己保证，不依赖存储层的排序规则
	var gotFirst, gotLast string
	lookup := &mockLookup{
		byNamePhone: func(ctx context.Context, firstName, lastName string) ([]*ExistingCandidate, error) {
			gotFirst, gotLast = firstName, lastName
			return nil, nil
		},
	}
	r := newTestResolver(lookup)

	_, err := r.Resolve(context.Background(), incomingCandidate(1))
	require.NoError(t, err)

	assert.Equal(t, "john", gotFirst, "宽松查找的名应已转小写")
	assert.Equal(t, "doe", gotLast, "宽松查找的姓应已转小写")
}

func TestResolveLookupErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	lookup := &mockLookup{
		byHash: func(ctx context.Context, contentHash string) (*ExistingCandidate, error) {
			return nil, boom
		},
	}
	r := newTestResolver(lookup)

	decision, err := r.Resolve(context.Background(), incomingCandidate(1))
	require.Error(t, err, "持久层不可达时绝不猜测结论")
	assert.True(t, errors.Is(err, ErrLookupFailed))
	assert.Nil(t, decision)
}

func TestResolveEmptyContentHashSkipsHashStage(t *testing.T) {
	hashCalled := false
	lookup := &mockLookup{
		byHash: func(ctx context.Context, contentHash string) (*ExistingCandidate, error) {
			hashCalled = true
			return nil, nil
		},
	}
	r := newTestResolver(lookup)

	in := incomingCandidate(1)
	in.ContentHash = ""
	_, err := r.Resolve(context.Background(), in)
	require.NoError(t, err)

	assert.False(t, hashCalled, "空指纹不应参与内容指纹查找")
}
