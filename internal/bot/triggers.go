package bot

import (
	"regexp"
	"strings"

	"github.com/user/workbase/internal/types"
)

// trigger is one row of the natural-language fallback table: a keyword set
// that fires the trigger, the action it resolves to, and the rule that
// extracts the payload from the text.
type trigger struct {
	keywords *regexp.Regexp
	kind     types.ActionKind
	strip    *regexp.Regexp
	// minLen is the smallest useful payload; shorter extractions make the
	// trigger pass and let the next row try.
	minLen int
	// fullTextFallback substitutes the original text when stripping leaves
	// nothing usable.
	fullTextFallback bool
}

// triggers is evaluated in order; first match wins. The table is the whole
// extent of natural-language understanding: plain keyword spotting.
var triggers = []trigger{
	{
		keywords: regexp.MustCompile(`(?i)\b(task|todo|do)\b`),
		kind:     types.ActionCreateTask,
		strip:    regexp.MustCompile(`(?i)\b(create|add|make|new|task|todo)\b`),
		minLen:   3,
	},
	{
		keywords:         regexp.MustCompile(`(?i)\b(note|remember|write down)\b`),
		kind:             types.ActionCreateNote,
		strip:            regexp.MustCompile(`(?i)\b(note|remember|write down)\b`),
		fullTextFallback: true,
	},
	{
		keywords: regexp.MustCompile(`(?i)\b(remind|reminder)\b`),
		kind:     types.ActionCreateReminder,
	},
}

// MatchTrigger classifies free text against the trigger table. It returns
// the resolved action kind and extracted payload, or ok=false when no row
// matches, in which case the router falls back to the help response.
func MatchTrigger(text string) (types.ActionKind, string, bool) {
	for _, t := range triggers {
		if !t.keywords.MatchString(text) {
			continue
		}
		payload := text
		if t.strip != nil {
			payload = strings.Trim(t.strip.ReplaceAllString(text, ""), " :-\t")
			payload = strings.Join(strings.Fields(payload), " ")
		}
		if len(payload) < t.minLen {
			continue
		}
		if payload == "" && t.fullTextFallback {
			payload = text
		}
		return t.kind, payload, true
	}
	return "", "", false
}

// commandSynonyms maps bare verbose phrases to the slash command they are
// equivalent to. Matched against the whole lowercased message.
var commandSynonyms = map[string]string{
	"tasks":         "tasks",
	"show tasks":    "tasks",
	"list tasks":    "tasks",
	"stats":         "stats",
	"status":        "stats",
	"dashboard":     "stats",
	"team":          "team",
	"show team":     "team",
	"overdue":       "overdue",
	"overdue tasks": "overdue",

	// Labels sent by the persistent keyboard buttons.
	"📋 tasks":     "tasks",
	"📊 stats":     "stats",
	"📝 new note":  "note",
	"📚 search kb": "kb",
	"👥 team":      "team",
	"⏰ overdue":   "overdue",
}

// prefixSynonyms maps verbose phrase prefixes to (command, payload) pairs,
// e.g. "add task fix login" behaves exactly like "/newtask fix login".
var prefixSynonyms = []struct {
	prefix  string
	command string
}{
	{"create task", "newtask"},
	{"add task", "newtask"},
	{"add note", "note"},
	{"note:", "note"},
	{"search kb", "kb"},
	{"kb:", "kb"},
	{"remind me", "remind"},
}

// resolveCommand normalizes a message into a command name and its trailing
// argument text. Slash commands are lowercased and stripped of the
// platform's @botname suffix; verbose synonym forms resolve to the same
// command names. ok is false for plain free text.
func resolveCommand(text string) (cmd, rest string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "/") {
		name, tail, _ := strings.Cut(trimmed[1:], " ")
		name = strings.ToLower(name)
		if at := strings.Index(name, "@"); at >= 0 {
			name = name[:at]
		}
		return name, strings.TrimSpace(tail), name != ""
	}

	lower := strings.ToLower(trimmed)
	if cmd, ok := commandSynonyms[lower]; ok {
		return cmd, "", true
	}
	for _, syn := range prefixSynonyms {
		if strings.HasPrefix(lower, syn.prefix) {
			return syn.command, strings.Trim(trimmed[len(syn.prefix):], " :-\t"), true
		}
	}
	return "", "", false
}
