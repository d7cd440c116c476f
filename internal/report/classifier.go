// Package report detects operational incident reports in free-text Slack
// messages, extracts structured items from them via an LLM, and writes them
// to a Notion log database exactly once per source message.
package report

import (
	"regexp"
	"unicode/utf8"
)

// minReportLength is the shortest text worth classifying, in runes.
const minReportLength = 20

// Exclusion patterns: questions, feedback and shift-swap chatter. Checked
// before the inclusion patterns so a question quoting report language still
// gets rejected.
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`質問です`),
	regexp.MustCompile(`教えていただけ`),
	regexp.MustCompile(`みなさんどう思`),
	regexp.MustCompile(`ご存知の方`),
	regexp.MustCompile(`感想.*意見`),
	regexp.MustCompile(`フィードバック`),
	regexp.MustCompile(`代行.*お願い`),
	regexp.MustCompile(`代行でき`),
}

// Inclusion patterns: structural markers of a confirmation-work incident
// report. Any single match qualifies the text for extraction.
var reportPatterns = []*regexp.Regexp{
	regexp.MustCompile(`【.*?】.*(?:追記|記載|漏れ|なし|抜け)`),
	regexp.MustCompile(`記載[漏もな]れ`),
	regexp.MustCompile(`【】(?:追記|記載|漏れ|なし|未記入|未入力)`),
	regexp.MustCompile(`タグ.*(?:付き|付か|なし|ない)`),
	regexp.MustCompile(`チェック.*(?:外|入|は[ず])`),
	regexp.MustCompile(`アレルギー.*(?:漏れ|抜け|なし|外)`),
	regexp.MustCompile(`確定作業.*(?:完了|報告)`),
	regexp.MustCompile(`本日.*報告`),
	regexp.MustCompile(`以下.*報告`),
	regexp.MustCompile(`要確認.*(?:返却|で返)`),
	regexp.MustCompile(`問い合わせ.*(?:依頼|対象|先)`),
	regexp.MustCompile(`判定(?:済|根拠|保留)`),
	regexp.MustCompile(`規格書.*(?:【|漏|抜|追)`),
	regexp.MustCompile(`[＜■〇].*様`),
	regexp.MustCompile(`未確定`),
	regexp.MustCompile(`確定しました`),
}

// LooksLikeReport is the cheap pre-filter run before paying for a model
// call. Total and order-sensitive: exclusions win over inclusions.
func LooksLikeReport(text string) bool {
	if utf8.RuneCountInString(text) < minReportLength {
		return false
	}
	for _, p := range excludePatterns {
		if p.MatchString(text) {
			return false
		}
	}
	for _, p := range reportPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
