package apitests

import "github.com/backend-qa/api-contract-tests/config"

// Older auth API versions, and integrations that talk to the platform directly, use OAuth-style
// errors: {"error": "...", "error_description": "..."}.
var legacyAuthErrors = authErrorContract{
	capability: config.CapabilityLegacyContract,
	codeKey:    "error",
	messageKey: "error_description",
}

func DoLegacyContractAuthTests(t *T) {
	doAuthContractTests(t, legacyAuthErrors)
}
