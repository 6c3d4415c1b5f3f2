// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

// Package access decides which clients may open which media resources.
//
// The pipeline has three stages:
//   - a Resolver asks an IdentityService for the raw security label of a
//     client and parses it into a Context,
//   - an Authorizer evaluates an ordered RuleSet against (Context, URI),
//   - the resulting Decision is recorded by the audit logger when configured.
//
// Decisions are total: every (Context, URI) pair yields allow or deny with a
// reason. Errors are reserved for failures to build a Context at all.
package access

// Error codes produced by this package.
const (
	CodeInvalidProfileName  = "INVALID_PROFILE_NAME"
	CodeResolutionFailure   = "RESOLUTION_FAILURE"
	CodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	CodeInvalidRule         = "INVALID_RULE"
)

// Well-known security labels.
const (
	// Unconfined is the label of a process running without a sandbox profile.
	Unconfined = "unconfined"

	// ShellName is the profile of the platform shell (the dash).
	ShellName = "unity8-dash"
	// ShellSnapName is the profile of the snap-packaged platform shell.
	ShellSnapName = "snap.unity8-session.unity8-session"

	// MessagingAppName is a legacy hyphenated profile predating app ids.
	MessagingAppName = "messaging-app"
	// MediaPlayerSnapName is a legacy hyphenated snap profile.
	MediaPlayerSnapName = "snap.mediaplayer-app.mediaplayer-app"
)

// Package names with hard-coded exceptions in the default rule set.
const (
	MusicPackage   = "com.ubuntu.music"
	GalleryPackage = "com.ubuntu.gallery"
	CameraPackage  = "com.ubuntu.camera"
)
