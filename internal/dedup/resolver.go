package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cv-ingest-go/internal/types"

	"github.com/rs/zerolog"
)

// ErrLookupFailed 持久层在重复检查期间不可达。
// 判定引擎在不确定时绝不猜测结论，这个错误必须原样上抛给调用方。
var ErrLookupFailed = errors.New("重复检查时查询已有候选人失败")

// ExistingCandidate 查找协作方返回的已有记录切面
type ExistingCandidate struct {
	SubmissionUUID        string
	FullName              string
	PhoneNumber           string
	FileModifiedAt        *time.Time
	UploadedAt            time.Time
	YearsOfExperience     *int
	TotalExperienceMonths *int
}

// CandidateLookup 身份判定所需的持久层查找协作方。
// 实现方负责保证"查找->判定->提交"序列在content_hash与
// person_soft_id维度上的事务原子性（见存储层的唯一索引兜底）。
type CandidateLookup interface {
	// FindByContentHash 按内容指纹精确查找，未命中返回nil
	FindByContentHash(ctx context.Context, contentHash string) (*ExistingCandidate, error)
	// FindBySoftID 返回软标识相同的全部记录
	FindBySoftID(ctx context.Context, softID string) ([]*ExistingCandidate, error)
	// FindByNameAndPhone 宽松回退：姓名大小写不敏感子串匹配的记录
	// （电话相似性由调用方过滤）
	FindByNameAndPhone(ctx context.Context, firstName, lastName string) ([]*ExistingCandidate, error)
}

// Resolver 身份判定引擎：对每条进入的记录产出恰好一个终态决策。
// 自身无状态、同步，不持有长生命周期资源。
type Resolver struct {
	lookup CandidateLookup
	scorer *Scorer
	logger zerolog.Logger
}

// NewResolver 创建身份判定器
func NewResolver(lookup CandidateLookup, scorer *Scorer, logger zerolog.Logger) *Resolver {
	if scorer == nil {
		scorer = NewScorer(DefaultWeights(), nil)
	}
	return &Resolver{lookup: lookup, scorer: scorer, logger: logger}
}

// Resolve 执行四态判定：
//  1. 内容指纹非空且命中已有记录 -> Identical（调用方丢弃新文件）
//  2. 软标识命中，按新鲜度降序取最优已有记录
//  3. 软标识未命中时回退宽松查找：姓名子串匹配 且 电话相似
//  4. 有候选匹配时比较新鲜度：新记录严格更高 -> Replace，否则 -> Older
//     （同分偏向已有记录，它已经被接受过）
//  5. 任何阶段都未命中 -> Keep
func (r *Resolver) Resolve(ctx context.Context, in *types.IncomingCandidate) (*types.DuplicateDecision, error) {
	// 第一阶段：逐字节等价检测
	if in.ContentHash != "" {
		identical, err := r.lookup.FindByContentHash(ctx, in.ContentHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
		}
		if identical != nil {
			r.logger.Info().
				Str("content_hash", in.ContentHash).
				Str("existing_uuid", identical.SubmissionUUID).
				Msg("命中内容指纹，判定为完全相同")
			return &types.DuplicateDecision{
				Outcome:         types.DecisionIdentical,
				ConflictingUUID: identical.SubmissionUUID,
				Message:         fmt.Sprintf("Identical file already exists for %s", identical.FullName),
			}, nil
		}
	}

	// 第二阶段：人员软标识精确匹配
	matches, err := r.lookup.FindBySoftID(ctx, in.PersonSoftID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	// 第三阶段：宽松回退，捕获同名但区号不同的同一人。
	// 姓名先转小写，大小写不敏感由判定器保证，不依赖存储层的排序规则
	if len(matches) == 0 && in.Parsed.FirstName != "" && in.Parsed.LastName != "" {
		loose, err := r.lookup.FindByNameAndPhone(ctx,
			strings.ToLower(in.Parsed.FirstName), strings.ToLower(in.Parsed.LastName))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
		}
		for _, cand := range loose {
			if PhonesSimilar(in.Parsed.PhoneNumber, cand.PhoneNumber) {
				matches = append(matches, cand)
			}
		}
	}

	if len(matches) == 0 {
		return &types.DuplicateDecision{
			Outcome: types.DecisionKeep,
			Message: "No duplicates found",
		}, nil
	}

	// 第四阶段：与最新鲜的已有记录比较
	best := r.freshest(matches)
	incomingScore := r.scorer.Score(Scorable{
		FileModifiedAt:        in.FileModifiedAt,
		UploadedAt:            in.UploadedAt,
		YearsOfExperience:     in.Parsed.YearsOfExperience,
		TotalExperienceMonths: in.Parsed.TotalExperienceMonths,
	})
	existingScore := r.scorer.Score(Scorable{
		FileModifiedAt:        best.FileModifiedAt,
		UploadedAt:            best.UploadedAt,
		YearsOfExperience:     best.YearsOfExperience,
		TotalExperienceMonths: best.TotalExperienceMonths,
	})

	r.logger.Debug().
		Str("existing_uuid", best.SubmissionUUID).
		Int("incoming_score", incomingScore).
		Int("existing_score", existingScore).
		Msg("同一候选人的新鲜度比较")

	if incomingScore > existingScore {
		return &types.DuplicateDecision{
			Outcome:         types.DecisionReplace,
			ConflictingUUID: best.SubmissionUUID,
			Message:         fmt.Sprintf("Replacing older resume for %s", best.FullName),
		}, nil
	}
	return &types.DuplicateDecision{
		Outcome:         types.DecisionOlder,
		ConflictingUUID: best.SubmissionUUID,
		Message:         fmt.Sprintf("Newer resume already exists for %s", best.FullName),
	}, nil
}

// freshest 返回新鲜度最高的已有记录
func (r *Resolver) freshest(matches []*ExistingCandidate) *ExistingCandidate {
	best := matches[0]
	bestScore := r.scorer.Score(Scorable{
		FileModifiedAt:        best.FileModifiedAt,
		UploadedAt:            best.UploadedAt,
		YearsOfExperience:     best.YearsOfExperience,
		TotalExperienceMonths: best.TotalExperienceMonths,
	})
	for _, cand := range matches[1:] {
		score := r.scorer.Score(Scorable{
			FileModifiedAt:        cand.FileModifiedAt,
			UploadedAt:            cand.UploadedAt,
			YearsOfExperience:     cand.YearsOfExperience,
			TotalExperienceMonths: cand.TotalExperienceMonths,
		})
		if score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}
