// Verdict evaluates business-rule decision graphs.
//
// Usage:
//
//	# Evaluate a decision file against a context
//	verdict eval rules/pricing.json --context '{"cart": {"total": 120}}'
//
//	# Check a decision file without evaluating it
//	verdict validate rules/pricing.yaml
//
//	# Serve decisions from a directory over MCP (stdio)
//	verdict serve --dir ./rules
//
//	# Serve stored decisions over MCP/SSE
//	verdict serve --db ~/.verdict/verdict.db --transport sse --addr :4100
package main

func main() {
	Execute()
}
