package orchestrator

import "github.com/ShayCichocki/tierup/pkg/models"

// AgentRole names a collaborator in a tier's agent team.
type AgentRole string

const (
	RoleGenerator AgentRole = "generator"
	RoleAnalyzer  AgentRole = "analyzer"
	RoleReviewer  AgentRole = "reviewer"
)

// CreateAgentTeam returns the roles that collaborate at a tier. Running the
// agents is the executor's job; this only declares the team.
func CreateAgentTeam(tier models.Tier, _ *models.FailureContext) []AgentRole {
	switch tier {
	case models.TierCapable:
		return []AgentRole{RoleGenerator, RoleAnalyzer}
	case models.TierPremium:
		return []AgentRole{RoleGenerator, RoleAnalyzer, RoleReviewer}
	default:
		return []AgentRole{RoleGenerator}
	}
}
