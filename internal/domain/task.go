package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage は生成パイプラインの各フェーズを表します。
type Stage string

const (
	StageScript   Stage = "script"
	StageSubtitle Stage = "subtitle"
	StageImage    Stage = "image"
)

// AllStages は Supervisor が実行するフェーズの固定順序です。
var AllStages = []Stage{StageScript, StageSubtitle, StageImage}

// LogEntry は TaskContext の追記専用ログの 1 レコードです。
// 一度追加されたエントリは書き換えられません。
type LogEntry struct {
	Time   time.Time `json:"time"`
	Agent  string    `json:"agent"`
	Action string    `json:"action"`
	Result string    `json:"result"`
	Detail string    `json:"detail,omitempty"`
}

// TaskContext は 1 本のショート動画生成ジョブの唯一の状態です。
// Supervisor がジョブの生存期間を通じて所有し、各エージェントには
// 参照として渡されます。エージェントは自分の担当アーティファクトと
// 試行カウンタのみを変更できます。
type TaskContext struct {
	TaskID    string `json:"task_id"`
	Topic     string `json:"topic"`
	Person    string `json:"person"`
	Category  string `json:"category"`
	IssueType string `json:"issue_type"`

	// アーティファクト。再生成は常に丸ごと置き換えで、部分マージは行いません。
	Script   *Script       `json:"script,omitempty"`
	Images   []string      `json:"images,omitempty"`
	Subtitle *SubtitleData `json:"subtitle,omitempty"`

	feedback map[Stage]string
	attempts map[Stage]int

	Log []LogEntry `json:"log"`
}

// NewTaskContext はリクエストから新しい TaskContext を生成します。
func NewTaskContext(req ProduceRequest) *TaskContext {
	return &TaskContext{
		TaskID:    uuid.NewString(),
		Topic:     req.Topic,
		Person:    req.Person,
		Category:  req.Category,
		IssueType: req.IssueType,
		feedback:  make(map[Stage]string),
		attempts:  make(map[Stage]int),
	}
}

// AppendLog は監査ログにエントリを 1 件追記します。
func (t *TaskContext) AppendLog(agent, action, result, detail string) {
	t.Log = append(t.Log, LogEntry{
		Time:   time.Now(),
		Agent:  agent,
		Action: action,
		Result: result,
		Detail: detail,
	})
}

// AttemptsFor は指定ステージの試行回数を返します。
func (t *TaskContext) AttemptsFor(stage Stage) int {
	return t.attempts[stage]
}

// IncrementAttempts は指定ステージの試行カウンタを 1 増やします。
// カウンタは単調増加で、ジョブ内でリセットされることはありません。
func (t *TaskContext) IncrementAttempts(stage Stage) int {
	t.attempts[stage]++
	return t.attempts[stage]
}

// FeedbackFor は直近のレビューフィードバックを返します。未レビューなら空文字です。
func (t *TaskContext) FeedbackFor(stage Stage) string {
	return t.feedback[stage]
}

// SetFeedback はステージのフィードバックを上書きします。
// 古いフィードバックは次のレビューで自然に置き換わります。
func (t *TaskContext) SetFeedback(stage Stage, feedback string) {
	t.feedback[stage] = feedback
}

// AttemptsSnapshot は全ステージの試行回数のコピーを返します。
func (t *TaskContext) AttemptsSnapshot() map[Stage]int {
	snapshot := make(map[Stage]int, len(t.attempts))
	for stage, n := range t.attempts {
		snapshot[stage] = n
	}
	return snapshot
}
