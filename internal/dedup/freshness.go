package dedup

import "time"

// Weights 新鲜度打分的上限参数。
// 数值本身是策略而非不变量，可调；但必须维持
// 文件修改时间 > 上传时间 > 工作经验 的主导顺序。
type Weights struct {
	FileModifiedCap int // 文件修改时间项的上限
	UploadedCap     int // 上传时间项的上限
	YearsCap        int // 经验年限项的上限（年限×YearsFactor后截断）
	YearsFactor     int
	MonthsCap       int // 经验月数项的上限
}

// DefaultWeights 返回默认打分参数
func DefaultWeights() Weights {
	return Weights{
		FileModifiedCap: 10000,
		UploadedCap:     5000,
		YearsCap:        1000,
		YearsFactor:     10,
		MonthsCap:       500,
	}
}

// Scorable 新鲜度打分所需的记录切面
type Scorable struct {
	FileModifiedAt        *time.Time
	UploadedAt            time.Time
	YearsOfExperience     *int
	TotalExperienceMonths *int
}

// Scorer 计算记录的新鲜度分，用于同一人的多份简历之间的取舍。
// 分数越高越新。文件修改时间未知的记录在该项得0分，
// 因此除非上传时间/经验项压倒性地大，它不会胜过修改时间已知且较新的记录。
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer 创建打分器，now为nil时使用time.Now
func NewScorer(weights Weights, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{weights: weights, now: now}
}

// Score 计算新鲜度分，恒≥0
func (s *Scorer) Score(rec Scorable) int {
	now := s.now().UTC()
	score := 0

	// 文件修改时间优先级最高
	if rec.FileModifiedAt != nil {
		score += clampDays(s.weights.FileModifiedCap, now, *rec.FileModifiedAt)
	}

	// 上传时间作为次级因素
	if !rec.UploadedAt.IsZero() {
		score += clampDays(s.weights.UploadedCap, now, rec.UploadedAt)
	}

	// 经验只作为最终平局判定
	if rec.YearsOfExperience != nil {
		years := *rec.YearsOfExperience * s.weights.YearsFactor
		if years > s.weights.YearsCap {
			years = s.weights.YearsCap
		}
		if years > 0 {
			score += years
		}
	}
	if rec.TotalExperienceMonths != nil {
		months := *rec.TotalExperienceMonths
		if months > s.weights.MonthsCap {
			months = s.weights.MonthsCap
		}
		if months > 0 {
			score += months
		}
	}

	return score
}

func clampDays(limit int, now, t time.Time) int {
	days := int(now.Sub(t.UTC()).Hours() / 24)
	v := limit - days
	if v < 0 {
		return 0
	}
	return v
}
