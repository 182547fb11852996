// Package triage provides the business boundary for patient urgency triage.
// It defines the Engine (feature extraction, classification, scoring and
// reasoning), the Service (readiness, audit dispatch, keyword fallback), the
// Store and Notifier interfaces, and the domain models.
package triage
