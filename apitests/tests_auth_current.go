package apitests

import "github.com/backend-qa/api-contract-tests/config"

// The current auth API reports errors as {"code": 400, "error_code": "...", "msg": "..."}.
var currentAuthErrors = authErrorContract{
	capability: config.CapabilityCurrentContract,
	codeKey:    "error_code",
	messageKey: "msg",
	extraKeys:  []string{"code"},
}

func DoCurrentContractAuthTests(t *T) {
	doAuthContractTests(t, currentAuthErrors)
}
