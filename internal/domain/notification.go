package domain

// CategoryNotAvailable は保存先カテゴリが確定していないことを表します。
const CategoryNotAvailable = "N/A"

// NotificationRequest は、ジョブ完了・失敗通知に載せる実行メタデータです。
type NotificationRequest struct {
	// SourceTopic はジョブの元になったトピックです。
	SourceTopic string
	// OutputCategory は成果物の種別です。(例: "shorts-output", "script-json")
	OutputCategory string
	// TargetTitle は生成された台本タイトルです。
	TargetTitle string
	// ExecutionMode は実行経路の説明です。(例: "produce / 논란")
	ExecutionMode string
}
