package engine

// AttentionRule pairs a trigger keyword with the warning it raises.
// The table is ordered: the first keyword found in the raw prompt
// wins, independent of the rest of the pipeline.
type AttentionRule struct {
	Keyword string
	Warning string
}

var attentionRules = []AttentionRule{
	{"force push", "Force push detected: history rewrite, confirm the branch is yours alone."},
	{"rm -rf", "Recursive delete detected: check the path twice before running."},
	{"drop table", "Destructive schema change detected: confirm a backup exists."},
	{"production", "Production context detected: double-check destructive operations."},
	{"migration", "Migration context detected: verify rollback path before applying."},
	{"delete", "Delete operation mentioned: confirm scope before proceeding."},
	{"deploy", "Deploy context detected: confirm target environment."},
	{"credentials", "Credentials mentioned: keep secrets out of logs and commits."},
}

// cortex maps free-text prompt tokens onto memory tags. Config can
// merge extra entries over this table; it is never mutated.
var cortex = map[string][]string{
	"deploy":      {"deployment"},
	"deploys":     {"deployment"},
	"deployment":  {"deployment"},
	"release":     {"deployment"},
	"rollback":    {"deployment"},
	"crash":       {"stability"},
	"crashed":     {"stability"},
	"panic":       {"stability"},
	"error":       {"debugging"},
	"bug":         {"debugging"},
	"debug":       {"debugging"},
	"test":        {"testing"},
	"tests":       {"testing"},
	"flaky":       {"testing"},
	"database":    {"database"},
	"db":          {"database"},
	"sql":         {"database"},
	"migration":   {"database", "migration"},
	"migrations":  {"database", "migration"},
	"auth":        {"auth", "security"},
	"login":       {"auth"},
	"token":       {"auth", "security"},
	"password":    {"auth", "security"},
	"security":    {"security"},
	"cache":       {"caching"},
	"caching":     {"caching"},
	"redis":       {"caching"},
	"docker":      {"docker", "deployment"},
	"container":   {"docker"},
	"kubernetes":  {"docker", "deployment"},
	"build":       {"build"},
	"compile":     {"build"},
	"lint":        {"build"},
	"slow":        {"performance"},
	"performance": {"performance"},
	"latency":     {"performance"},
	"leak":        {"performance", "stability"},
	"api":         {"api"},
	"endpoint":    {"api"},
	"http":        {"api"},
	"config":      {"config"},
	"env":         {"config"},
	"environment": {"config"},
	"git":         {"git"},
	"merge":       {"git"},
	"rebase":      {"git"},
	"branch":      {"git"},
	"production":  {"production"},
	"prod":        {"production"},
	"staging":     {"deployment"},
	"logging":     {"observability"},
	"logs":        {"observability"},
	"metrics":     {"observability"},
	"timeout":     {"stability", "performance"},
	"race":        {"concurrency"},
	"deadlock":    {"concurrency"},
	"goroutine":   {"concurrency"},
	"concurrency": {"concurrency"},
}

// Severity inference keywords, scanned over a memory's own text when
// the explicit severity field is unset.
var highSeverityKeywords = []string{
	"crash", "data loss", "corrupt", "outage", "security", "breach",
	"destroyed", "unrecoverable",
}

var mediumSeverityKeywords = []string{
	"fail", "failed", "bug", "error", "slow", "regression", "flaky",
	"broken",
}
