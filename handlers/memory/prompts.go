package memory

import (
	"fmt"
	"strings"

	"deskpet/storage"
)

// categoryLabels maps storage categories to the display labels used inside
// prompts. Unknown categories fall through to their raw value.
var categoryLabels = map[storage.Category]string{
	storage.CategoryFact:         "事实",
	storage.CategoryPreference:   "偏好",
	storage.CategoryRelationship: "关系",
	storage.CategoryProject:      "项目",
	storage.CategoryEvent:        "事件",
}

func categoryLabel(c storage.Category) string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// memoryLine renders one record the way both prompt builders and the
// injection block expect it.
func memoryLine(m storage.LongTermMemory) string {
	return fmt.Sprintf("- [%s][重要度: %d] %s", categoryLabel(m.Category), m.Weight, m.Text)
}

func joinMemoryLines(memories []storage.LongTermMemory) string {
	lines := make([]string, len(memories))
	for i, m := range memories {
		lines[i] = memoryLine(m)
	}
	return strings.Join(lines, "\n")
}

// dialogText renders chat turns as the generation prompt expects them.
func dialogText(messages []storage.Message) string {
	lines := make([]string, len(messages))
	for i, msg := range messages {
		speaker := "助手"
		if msg.Role == storage.RoleUser {
			speaker = "用户"
		}
		lines[i] = speaker + ": " + msg.Content
	}
	return strings.Join(lines, "\n")
}

const (
	generationSystemPrompt  = "你是一个记忆提取专家，负责从对话中提取有价值的长期记忆。"
	mergeSystemPrompt       = "你是一个记忆合并专家，负责将新信息与已有记忆合并或更新。"
	compressionSystemPrompt = "你是记忆压缩专家，擅长提炼关键信息。"
)

// buildGenerationPrompt asks the model to regenerate the full memory set
// from the recent dialog, folding in whatever memories already exist.
func buildGenerationPrompt(dialog string, existing []storage.LongTermMemory) string {
	task := "提取有价值的长期记忆"
	existingBlock := ""
	if len(existing) > 0 {
		task = "结合已有记忆，重新整理所有长期记忆"
		existingBlock = "\n\n【当前已有记忆】（请在新对话基础上重新整理，如果新对话与旧记忆矛盾，以新信息为准）：\n" +
			joinMemoryLines(existing)
	}

	return fmt.Sprintf(`请分析以下对话，%s。

【最近对话】：
%s%s

记忆分类：
- fact: 客观事实（如职业、爱好、家庭状况）
- preference: 用户偏好（如喜欢的食物、风格）
- relationship: 关系信息（如称呼、亲密度）
- project: 项目或任务信息
- event: 重要事件

请以 JSON 数组格式返回整理后的记忆（覆盖所有旧记忆）：
[
  {
    "category": "fact",
    "text": "用户是一名软件工程师",
    "importance": 80,
    "reasoning": "这是用户的职业信息，对后续对话很重要"
  }
]

重要要求：
1. 如果新对话纠正了旧记忆（如"开玩笑的，没病"纠正"得了绝症"），应该删除或更新旧记忆
2. 如果新对话补充了旧记忆，应该合并
3. 每条记忆文本简洁自然（1-2句话）
4. importance 范围 0-100，只提取重要性 ≥ 60 的信息
5. 不要提取临时性、无意义的信息
6. 如果没有值得记忆的内容，返回空数组 []

请只返回 JSON，不要其他解释。`, task, dialog, existingBlock)
}

// buildMergePrompt asks the model whether newText duplicates, extends, or is
// independent of the existing same-category memories.
func buildMergePrompt(newText string, existing []storage.LongTermMemory) string {
	lines := make([]string, len(existing))
	for i, m := range existing {
		lines[i] = fmt.Sprintf("%d. [ID: %s] %s", i+1, m.ID, m.Text)
	}

	return fmt.Sprintf(`新信息：%s

已有记忆：
%s

请判断：
1. 新信息是否与已有记忆重复？
2. 是否需要合并到某条已有记忆？
3. 还是应该作为新记忆保存？

请以 JSON 格式返回：
{
  "action": "merge" 或 "new",
  "targetId": "要合并的记忆 ID（仅 action=merge 时）",
  "mergedText": "合并后的文本（仅 action=merge 时）",
  "newWeight": 更新后的重要性 0-100,
  "reasoning": "判断理由"
}

请只返回 JSON，不要其他解释。`, newText, strings.Join(lines, "\n"))
}

// buildCompressionPrompt asks the model to shrink a memory listing under the
// injection budget while keeping the line format.
func buildCompressionPrompt(memoryText string, budget int) string {
	return fmt.Sprintf(`请将以下长期记忆压缩成更简洁的版本，保留核心信息，控制在 %d 字以内：

%s

请直接返回压缩后的记忆，每条一行，以 "- " 开头。`, budget, memoryText)
}

// stripCodeFences removes markdown code fence markers the model sometimes
// wraps its JSON in.
func stripCodeFences(content string) string {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

const emptyMemoryBlock = `

----【长期记忆】----
（当前没有可用的长期记忆。）
----【长期记忆结束】----
`

// formatMemoryBlock wraps the rendered memory lines in the instruction
// template that gets appended to the pet's system prompt. An empty listing
// gets a short placeholder block instead.
func formatMemoryBlock(memoryText string) string {
	if strings.TrimSpace(memoryText) == "" {
		return emptyMemoryBlock
	}

	return fmt.Sprintf(`

你是一名桌面数字人助手，需要在与用户对话时自然地利用你对ta的长期记忆，
但不能直接暴露"记忆系统"的存在。

下面是你当前掌握的【长期记忆】，这些信息可能并不完整，也可能有部分已经过时，
但可以帮助你更好地理解用户、延续之前的对话风格和偏好：

----【长期记忆开始】----
%s
----【长期记忆结束】----

使用这些记忆时，请遵守以下原则：
1. 只在与当前问题相关时使用记忆，不要强行引用无关内容。
2. 如果记忆与用户最新说的话发生冲突，以「用户当前说法」为准，并温和地根据新信息更新你的理解。
3. 不要向用户说明"我在调用记忆""我记得我记录过……"，而是自然地表现出"熟悉感"。
4. 不要逐条复述记忆的原文，更不要暴露记忆的内部格式（例如"category""重要度"等词）。
5. 如果你不确定记忆是否仍然有效，可以先向用户确认，而不是武断下结论。
`, memoryText)
}
