package domain

import "time"

// FailureKind はエージェント呼び出しの失敗区分です。
// 例外ではなく結果のバリアントとして呼び出し元に返されます。
type FailureKind string

const (
	// FailureNone は成功時の値です。
	FailureNone FailureKind = ""
	// FailureParse は生成自体は成功したが、期待する構造に
	// パースできなかったことを表します（修復試行後）。
	FailureParse FailureKind = "parse"
	// FailureTransport は外部呼び出し自体の失敗を表します。
	FailureTransport FailureKind = "transport"
	// FailureQuality はレビュー基準を満たさなかったことを表します。
	// エラーではなく、リトライループの通常のトリガーです。
	FailureQuality FailureKind = "quality"
)

// AgentResult はすべてのエージェント呼び出しが返す固定形の結果です。
// 呼び出し地点を超えて永続化されることはありません。
type AgentResult struct {
	Success bool        `json:"success"`
	Failure FailureKind `json:"failure,omitempty"`
	// Message は失敗時の人間可読な説明です。
	Message string `json:"message,omitempty"`
	// Feedback はレビューエージェントだけが設定する改善指示です。
	Feedback string `json:"feedback,omitempty"`
	// NeedsImprovement はレビューの再生成要求を表します。
	NeedsImprovement bool `json:"needs_improvement,omitempty"`
	// Targets は再生成が必要なアーティファクト名です（"script" など。
	// 主題バリデーション失敗時は "person"）。
	Targets []string `json:"targets,omitempty"`
	// FailedScenes は画像ステージで生成に失敗したシーン番号です。
	FailedScenes []int `json:"failed_scenes,omitempty"`

	Cost     float64       `json:"cost"`
	Duration time.Duration `json:"duration"`
}

// HasTarget は指定アーティファクトが再生成対象かを返します。
func (r *AgentResult) HasTarget(name string) bool {
	for _, t := range r.Targets {
		if t == name {
			return true
		}
	}
	return false
}

// ProduceRequest はショート動画生成ジョブへの唯一の入力です。
type ProduceRequest struct {
	Topic     string `json:"topic"`
	Person    string `json:"person"`
	Category  string `json:"category"`
	IssueType string `json:"issue_type"`

	Options ProduceOptions `json:"options"`
}

// ProduceOptions はジョブ単位の上書き設定です。ゼロ値は config の既定値に従います。
type ProduceOptions struct {
	// MaxAttempts は各ステージのリトライ上限です。0 なら設定値を使用します。
	MaxAttempts int `json:"max_attempts,omitempty"`
	// SceneLimit は台本の最大シーン数の上書きです。0 なら設定値を使用します。
	SceneLimit int `json:"scene_limit,omitempty"`
}

// ProduceResult はジョブ完了時に呼び出し元へ返される最終結果です。
// リトライ上限に達したステージも最後のアーティファクトを保持したまま
// ここに含まれます（degrade-not-abort）。
type ProduceResult struct {
	TaskID   string        `json:"task_id"`
	Script   *Script       `json:"script,omitempty"`
	Subtitle *SubtitleData `json:"subtitle,omitempty"`
	Images   []string      `json:"images,omitempty"`

	Attempts      map[Stage]int `json:"attempts"`
	TotalCost     float64       `json:"total_cost"`
	TotalDuration time.Duration `json:"total_duration"`
	Log           []LogEntry    `json:"log"`
}
