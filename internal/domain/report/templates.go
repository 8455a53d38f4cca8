package report

import (
	"strings"

	"smartagri-server-go/internal/platform/errors"
)

// diseaseTemplate renders a concise pathology report.
const diseaseTemplate = `你是一名植物病理学专家。请基于以下检索到的上下文（Context），严格按照下述格式生成诊断报告。

【上下文】
{context}

---
**诊断结果**：{diagnosis_name} {diagnosis_en_name}

**病原**：[请从上下文中提取]
**病征**：[请从上下文中提取]
**发生生态**：[请从上下文中提取]
**防治**：
[请从上下文中提取，分点列出]
---

**注意**：
1. "防治"部分必须分点（如 a, b...）。
2. 化学药剂必须包含浓度倍数（如 500倍）。
3. 如果上下文没有提到某项信息（如病原），请标注"资料不足"。`

// pestTemplate renders an encyclopedic entomology report.
const pestTemplate = `你是一名农业昆虫学专家。请基于以下检索到的上下文（Context），严格按照下述格式生成详细报告。

【上下文】
{context}

---
**诊断结果**：**{diagnosis_name}**

[请从上下文中提取总体介绍]

**主要种类**：
[请列出学名和英名]

**（一）生活习性与危害状**
[请从上下文中提取]

**（二）防治方法**
1. **生物防治**：[请从上下文中提取]
2. **药剂防治**：[请从上下文中提取，含药剂、浓度、安全间隔期]
---

**注意**：
1. "主要种类"部分请列出学名和英名（如果有）。
2. "药剂防治"部分必须列出具体的药剂名称、浓度（倍数）和安全间隔期建议。
3. 保持排版整洁，使用 Markdown 加粗关键术语。`

const systemPrompt = "你是一名农业专家，擅长植物病虫害诊断和防治建议。"

// templateFor selects the prompt by taxonomy category, case-insensitive.
func templateFor(category string) (string, error) {
	switch strings.ToLower(category) {
	case "disease":
		return diseaseTemplate, nil
	case "pest":
		return pestTemplate, nil
	default:
		return "", errors.New(errors.KindReport, "report.templateFor",
			"no report template for category "+category)
	}
}
