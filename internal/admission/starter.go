package admission

// StarterPolicy is written by `genesis policy init`.
const StarterPolicy = `package genesis.admission

import rego.v1

deny contains msg if {
	input.agent.selected_model != ""
	not genesis.model_known(input.agent.selected_model)
	msg := sprintf("model %q is not in the catalogue", [input.agent.selected_model])
}

deny contains msg if {
	n := count(input.agent.capabilities)
	n > 20
	msg := sprintf("agent declares %d capabilities, the limit is 20", [n])
}

warn contains msg if {
	input.retry_count >= 2
	msg := sprintf("agent needed %d adjustments before passing QA", [input.retry_count])
}

warn contains msg if {
	genesis.model_input_price(input.agent.selected_model) > 5
	msg := sprintf("model %q costs more than $5 per 1M input tokens", [input.agent.selected_model])
}
`

// StarterPolicyTest exercises StarterPolicy with opa-style unit tests.
const StarterPolicyTest = `package genesis.admission

import rego.v1

test_unknown_model_denied if {
	count(deny) == 1 with input as {"agent": {"selected_model": "made-up-model", "capabilities": []}, "retry_count": 0}
}

test_catalogue_model_allowed if {
	count(deny) == 0 with input as {"agent": {"selected_model": "gpt-4o-mini", "capabilities": ["a"]}, "retry_count": 0}
}

test_retries_warn if {
	count(warn) == 1 with input as {"agent": {"selected_model": "gpt-4o-mini", "capabilities": []}, "retry_count": 2}
}
`
