// Package domain contains core business types and interfaces.
//
// This file defines the plan catalog: which tools and features each plan
// unlocks and the default limits applied when a user lands on a plan.
package domain

import (
	"slices"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// Plan Tiers
// =============================================================================

// PlanTier represents the pricing tier of a usage record.
type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanPro      PlanTier = "pro"
	PlanBusiness PlanTier = "business"
)

// AllPlans lists every plan tier from least to most capable.
var AllPlans = []PlanTier{PlanFree, PlanPro, PlanBusiness}

// String returns the string representation of the plan.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid returns true if the plan is a recognized value.
func (p PlanTier) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanBusiness:
		return true
	}
	return false
}

// IsPaid returns true for plans that require a subscription or trial.
func (p PlanTier) IsPaid() bool {
	return p == PlanPro || p == PlanBusiness
}

// DisplayName returns the plan name as shown to users ("Pro").
func (p PlanTier) DisplayName() string {
	return cases.Title(language.English).String(string(p))
}

// ParsePlanTier converts a raw string into a PlanTier.
func ParsePlanTier(s string) (PlanTier, bool) {
	p := PlanTier(s)
	return p, p.IsValid()
}

// =============================================================================
// Tools
// =============================================================================

// ToolID identifies one of the content-generation tools.
type ToolID string

const (
	ToolBlogCreator        ToolID = "blog_creator"
	ToolEmailGenerator     ToolID = "email_generator"
	ToolSocialMediaPost    ToolID = "social_media_post"
	ToolSEOOptimizer       ToolID = "seo_optimizer"
	ToolAdCopy             ToolID = "ad_copy"
	ToolProductDescription ToolID = "product_description"
)

// AllTools lists every tool.
var AllTools = []ToolID{
	ToolBlogCreator,
	ToolEmailGenerator,
	ToolSocialMediaPost,
	ToolSEOOptimizer,
	ToolAdCopy,
	ToolProductDescription,
}

var freeTools = []ToolID{
	ToolBlogCreator,
	ToolEmailGenerator,
	ToolSocialMediaPost,
}

// IsValid returns true if the tool is a recognized value.
func (t ToolID) IsValid() bool {
	return slices.Contains(AllTools, t)
}

// =============================================================================
// Features
// =============================================================================

// FeatureID identifies a capability gated by plan, orthogonal to tools.
type FeatureID string

// Free features
const (
	FeatureBasicTemplates  FeatureID = "basic_templates"
	FeatureCopyToClipboard FeatureID = "copy_to_clipboard"
	FeatureWordCounter     FeatureID = "word_counter"
)

// Pro features (everything in Free, plus:)
const (
	FeatureExportPDF       FeatureID = "export_pdf"
	FeatureExportDOCX      FeatureID = "export_docx"
	FeatureAIChatAssistant FeatureID = "ai_chat_assistant"
	FeatureToneAdjustment  FeatureID = "tone_adjustment"
	FeaturePlagiarismCheck FeatureID = "plagiarism_check"
	FeatureContentHistory  FeatureID = "content_history"
	FeatureCustomTemplates FeatureID = "custom_templates"
	FeatureTeamSharing     FeatureID = "team_sharing"
)

// Business features (everything in Pro, plus:)
const (
	FeatureBulkGeneration          FeatureID = "bulk_generation"
	FeatureBulkExport              FeatureID = "bulk_export"
	FeatureAPIAccess               FeatureID = "api_access"
	FeatureBrandVoice              FeatureID = "brand_voice"
	FeatureWhiteLabel              FeatureID = "white_label"
	FeatureSSO                     FeatureID = "sso"
	FeatureAdvancedAnalytics       FeatureID = "advanced_analytics"
	FeatureAuditLog                FeatureID = "audit_log"
	FeatureCustomIntegrations      FeatureID = "custom_integrations"
	FeaturePrioritySupport         FeatureID = "priority_support"
	FeatureDedicatedAccountManager FeatureID = "dedicated_account_manager"
)

var freeFeatures = []FeatureID{
	FeatureBasicTemplates,
	FeatureCopyToClipboard,
	FeatureWordCounter,
}

var proFeatures = appendFeatures(freeFeatures,
	FeatureExportPDF,
	FeatureExportDOCX,
	FeatureAIChatAssistant,
	FeatureToneAdjustment,
	FeaturePlagiarismCheck,
	FeatureContentHistory,
	FeatureCustomTemplates,
	FeatureTeamSharing,
)

var businessFeatures = appendFeatures(proFeatures,
	FeatureBulkGeneration,
	FeatureBulkExport,
	FeatureAPIAccess,
	FeatureBrandVoice,
	FeatureWhiteLabel,
	FeatureSSO,
	FeatureAdvancedAnalytics,
	FeatureAuditLog,
	FeatureCustomIntegrations,
	FeaturePrioritySupport,
	FeatureDedicatedAccountManager,
)

// AllFeatures lists every feature.
var AllFeatures = append([]FeatureID(nil), businessFeatures...)

// IsValid returns true if the feature is a recognized value.
func (f FeatureID) IsValid() bool {
	return slices.Contains(AllFeatures, f)
}

func appendFeatures(base []FeatureID, extra ...FeatureID) []FeatureID {
	out := make([]FeatureID, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// =============================================================================
// Catalog
// =============================================================================

const (
	// TrialDuration is the fixed length of a paid-plan trial.
	TrialDuration = 7 * 24 * time.Hour

	freeWordLimit       = 5000
	freeGenerationLimit = 3
	proWordLimit        = 50000
)

// PlanEntitlements describes what a plan unlocks and its default limits.
type PlanEntitlements struct {
	Tools           []ToolID
	Features        []FeatureID
	WordLimit       Limit
	GenerationLimit Limit
}

// Entitlements returns the catalog entry for a plan. Unknown plans get the
// Free entry.
func Entitlements(plan PlanTier) PlanEntitlements {
	switch plan {
	case PlanPro:
		return PlanEntitlements{
			Tools:           AllTools,
			Features:        proFeatures,
			WordLimit:       Limited(proWordLimit),
			GenerationLimit: Unlimited(),
		}
	case PlanBusiness:
		return PlanEntitlements{
			Tools:           AllTools,
			Features:        businessFeatures,
			WordLimit:       Unlimited(),
			GenerationLimit: Unlimited(),
		}
	default:
		return PlanEntitlements{
			Tools:           freeTools,
			Features:        freeFeatures,
			WordLimit:       Limited(freeWordLimit),
			GenerationLimit: Limited(freeGenerationLimit),
		}
	}
}

// TrialLimits returns the word and generation limits in force while a trial
// of the given paid plan is active.
func TrialLimits(plan PlanTier) (words, generations Limit) {
	switch plan {
	case PlanBusiness:
		return Unlimited(), Unlimited()
	default:
		return Limited(proWordLimit), Unlimited()
	}
}

// HasTool reports whether the plan unlocks the tool.
func (e PlanEntitlements) HasTool(tool ToolID) bool {
	return slices.Contains(e.Tools, tool)
}

// HasFeature reports whether the plan unlocks the feature.
func (e PlanEntitlements) HasFeature(feature FeatureID) bool {
	return slices.Contains(e.Features, feature)
}
