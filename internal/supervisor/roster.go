package supervisor

import (
	"ap-shorts-studio/internal/agents"
)

// RosterReport はジョブ開始時の自己点検結果です。欠けた役割の検出は
// 診断目的であり、実行を止めるゲートにはなりません（構築不備は
// ログで早期に気付ければ十分です）。
type RosterReport struct {
	Missing  []agents.Role
	Complete bool
}

// AnalyzeRoster は必須役割のうち未割り当てのものを列挙します。
func (s *Supervisor) AnalyzeRoster() RosterReport {
	bound := map[agents.Role]bool{}
	for _, agent := range []agents.Agent{s.script, s.subtitle, s.image, s.review} {
		if agent != nil {
			bound[agent.Role()] = true
		}
	}

	report := RosterReport{Complete: true}
	for _, role := range agents.RequiredRoles {
		if !bound[role] {
			report.Missing = append(report.Missing, role)
			report.Complete = false
		}
	}
	return report
}
