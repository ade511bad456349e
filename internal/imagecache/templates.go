package imagecache

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SceneTemplates は 1 つの issue-type に対するシーン位置別の
// テンプレートプロンプトです。
type SceneTemplates struct {
	Scenes map[int]string `yaml:"scenes"`
}

// TemplateSet は issue-type 別のテンプレートプロンプト集です。
// キャッシュミス時、シーン固有プロンプトより優先して使われます
// （スタイルの一貫性を保つため）。
type TemplateSet struct {
	IssueTypes map[string]SceneTemplates `yaml:"issue_types"`
}

// LoadTemplateSet は YAML ファイルからテンプレート集を読み込みます。
// ファイルが存在しない場合は空のテンプレート集を返します（テンプレートは任意設定）。
func LoadTemplateSet(path string) (*TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &TemplateSet{}, nil
		}
		return nil, fmt.Errorf("failed to read template config (path: %s): %w", path, err)
	}
	return ParseTemplateSet(data)
}

// ParseTemplateSet は YAML バイト列からテンプレート集を生成します。
func ParseTemplateSet(data []byte) (*TemplateSet, error) {
	var ts TemplateSet
	if err := yaml.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("failed to parse template config: %w", err)
	}
	return &ts, nil
}

// Lookup は (issue-type, シーン位置) のテンプレートを返します。
func (ts *TemplateSet) Lookup(issueType string, scene int) (string, bool) {
	if ts == nil || ts.IssueTypes == nil {
		return "", false
	}
	templates, ok := ts.IssueTypes[issueType]
	if !ok {
		return "", false
	}
	tpl, ok := templates.Scenes[scene]
	return tpl, ok
}

// RenderTemplate はテンプレート中の {person} / {topic} プレースホルダーを
// ジョブの値で置換します。
func RenderTemplate(tpl, person, topic string) string {
	rendered := strings.ReplaceAll(tpl, "{person}", person)
	return strings.ReplaceAll(rendered, "{topic}", topic)
}
