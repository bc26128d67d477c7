// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package rdf

import "github.com/boxc/depositcore/pkg/pid"

// CdrNS is the repository model namespace.
const CdrNS = "http://cdr.unc.edu/definitions/model#"

// Repository model predicates.
var (
	// Contains links a container to a member.
	Contains = IRI(CdrNS + "contains")
	// StorageLocation names the storage location id assigned to an object.
	StorageLocation = IRI(CdrNS + "storageLocation")
	// StorageURI is the final storage URI of a transferred binary.
	StorageURI = IRI(CdrNS + "storageUri")
	// StagingURI is the staging URI a binary was transferred from.
	StagingURI = IRI(CdrNS + "stagingUri")
	// TransferVerified marks a transfer whose copy was verified.
	TransferVerified = IRI(CdrNS + "transferVerified")
	// ContentDigest holds the digest of a transferred binary.
	ContentDigest = IRI(CdrNS + "contentDigest")
)

// Resource returns the IRI term of a repository object or component.
func Resource(p pid.PID) Term { return IRI(p.URI()) }
