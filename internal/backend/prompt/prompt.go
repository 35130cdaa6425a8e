// Package prompt builds the system and user prompts sent to generation
// backends. The system prompt is parameterized by threat modeling framework;
// the user prompt carries the sanitized architecture description and any
// additional context.
package prompt

import (
	"fmt"
	"strings"

	"github.com/threatforge/gateway/pkg/models"
)

// frameworkSections describes the per-framework analysis structure the
// backend is asked to follow.
var frameworkSections = map[string]string{
	"STRIDE": `For each component, identify:
- Spoofing threats
- Tampering threats
- Repudiation threats
- Information Disclosure threats
- Denial of Service threats
- Elevation of Privilege threats`,
	"PASTA": `Work through the seven PASTA stages:
1. Define business objectives
2. Define the technical scope
3. Decompose the application
4. Analyze threats
5. Analyze vulnerabilities and weaknesses
6. Model attacks
7. Analyze risk and impact`,
	"LINDDUN": `For each data flow and store, identify privacy threats:
- Linking
- Identifying
- Non-repudiation
- Detecting
- Data disclosure
- Unawareness
- Non-compliance`,
	"VAST": `Produce both perspectives of the VAST methodology:
- Application threat model (architectural view, process flows)
- Operational threat model (infrastructure view, attacker perspective)`,
}

// System returns the system prompt for the given framework. Unknown
// frameworks fall back to a generic analysis structure; callers are expected
// to validate the framework first.
func System(framework string) string {
	section, ok := frameworkSections[framework]
	if !ok {
		section = "Identify threats for each component, data flow, and trust boundary."
	}

	return fmt.Sprintf(`You are an expert security architect specializing in threat modeling for enterprise applications.

Your task is to analyze the provided architecture and generate a comprehensive threat model using the %s methodology.

When analyzing architecture diagrams:
- Identify all components, data flows, and trust boundaries shown
- Note technologies, protocols, and integrations
- Identify entry points and external dependencies
- Look for security controls depicted

Provide your analysis in the following structured format:

1. ARCHITECTURE OVERVIEW
   Key components, trust boundaries, data flows, and external dependencies.

2. THREAT ANALYSIS (%s)
%s

3. RISK ASSESSMENT
   Rate each threat as Critical, High, Medium, or Low.

4. MITIGATION STRATEGIES
   For each high or critical threat, give specific mitigation recommendations
   and relevant security controls (OWASP Top 10, CIS Controls, NIST CSF).

Be specific, actionable, and prioritize based on business impact.`, framework, framework, section)
}

// User assembles the user prompt from the request. Context, when present,
// precedes the architecture description.
func User(req models.GenerationRequest) string {
	var parts []string
	if req.Context != "" {
		parts = append(parts, "Additional Context:\n"+req.Context)
	}
	if req.Description != "" {
		parts = append(parts, "Architecture Description:\n"+req.Description)
	}
	parts = append(parts, "Focus on practical, actionable security recommendations.")
	return strings.Join(parts, "\n\n")
}
