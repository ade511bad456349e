package agents

import (
	"context"
	"time"

	"ap-shorts-studio/internal/domain"
	"ap-shorts-studio/internal/imagecache"
)

// Role はエージェントが担う生産上の役割です。Supervisor は役割にのみ
// 依存し、具象型には依存しません。
type Role string

const (
	RoleScript   Role = "script"
	RoleSubtitle Role = "subtitle"
	RoleImage    Role = "image"
	RoleReview   Role = "review"
)

// RequiredRoles はパイプラインの完全性診断に使う必須役割の一覧です。
var RequiredRoles = []Role{RoleScript, RoleSubtitle, RoleImage, RoleReview}

// Options はエージェント呼び出しの閉じたオプション集合です。
// 役割ごとに使用するフィールドが異なりますが、開放的なマップは持ちません。
type Options struct {
	// Feedback は改善呼び出し時のレビューフィードバックです。
	Feedback string
	// Stage はレビュー対象のアーティファクト種別です（ReviewAgent のみ）。
	Stage domain.Stage
	// Plan は画像フェーズの最適化計画です（ImageAgent のみ）。
	Plan *imagecache.Plan
	// RegenerateScenes は指定シーンのみをキャッシュ迂回で再生成する
	// 要求です（ImageAgent のみ）。
	RegenerateScenes []int
}

// Agent はすべての生成・レビューエージェントが満たす契約です。
// 呼び出しの失敗は error ではなく AgentResult のバリアントとして返します。
// 副作用は (a) 自分のアーティファクト欄の書き込み、(b) ログ 1 件の追記、
// (c) 自分の試行カウンタの加算、に限定されます。
type Agent interface {
	Name() string
	Role() Role
	Execute(ctx context.Context, task *domain.TaskContext, opts Options) *domain.AgentResult
}

// failure は失敗結果の共通コンストラクタです。
func failure(kind domain.FailureKind, message string, cost float64, started time.Time) *domain.AgentResult {
	return &domain.AgentResult{
		Success:  false,
		Failure:  kind,
		Message:  message,
		Cost:     cost,
		Duration: time.Since(started),
	}
}

// success は成功結果の共通コンストラクタです。
func success(cost float64, started time.Time) *domain.AgentResult {
	return &domain.AgentResult{
		Success:  true,
		Cost:     cost,
		Duration: time.Since(started),
	}
}
