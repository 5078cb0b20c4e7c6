// Package planner computes transfer plans from local and remote snapshots.
//
// Planning is pure: both functions only inspect the snapshots they are
// given, so a dry run and a real run over the same snapshots reach
// identical decisions.
package planner

import (
	"sort"

	"github.com/cvdmirror/cvdmirror/internal/domain"
)

// Transfer reasons, recorded on each planned transfer
const (
	ReasonForced        = "forced"
	ReasonMissingRemote = "missing from remote"
	ReasonMissingLocal  = "missing locally"
	ReasonLocalNewer    = "local copy newer"
	ReasonRemoteNewer   = "remote copy newer"
)

// PlanUpload decides, per local file, whether it must be copied to the
// store. Local files are keyed by relative path; the remote snapshot is
// keyed by prefix-relative key (see RelKey). A file is included when
// forced, when the store has no counterpart, or when the local copy is
// strictly newer. The plan never includes a file whose remote copy is
// strictly newer, and ties transfer nothing.
func PlanUpload(local, remote map[string]domain.FileInfo, prefix string, force bool) *domain.Plan {
	plan := &domain.Plan{Direction: domain.DirUpload}

	for _, lf := range local {
		rf, exists := remote[RelKey(lf)]

		var reason string
		switch {
		case force:
			reason = ReasonForced
		case !exists:
			reason = ReasonMissingRemote
		case lf.Newer(rf):
			reason = ReasonLocalNewer
		default:
			plan.Skipped++
			continue
		}

		plan.Transfers = append(plan.Transfers, domain.Transfer{
			Direction: domain.DirUpload,
			Path:      lf.Path,
			Key:       RemoteKey(prefix, lf),
			Size:      lf.Size,
			Auxiliary: lf.Auxiliary,
			Reason:    reason,
		})
	}

	finish(plan)
	return plan
}

// PlanDownload is the mirror image: for every object in the remote
// snapshot, include it when forced, when no local counterpart exists, or
// when the remote copy is strictly newer. A strictly newer local file is
// never overwritten unless forced.
func PlanDownload(local, remote map[string]domain.FileInfo, prefix string, force bool) *domain.Plan {
	plan := &domain.Plan{Direction: domain.DirDownload}

	for _, rf := range remote {
		lf, exists := local[rf.Path]
		if exists && lf.Auxiliary != rf.Auxiliary {
			exists = false // same name, different namespace
		}

		var reason string
		switch {
		case force:
			reason = ReasonForced
		case !exists:
			reason = ReasonMissingLocal
		case rf.Newer(lf):
			reason = ReasonRemoteNewer
		default:
			plan.Skipped++
			continue
		}

		plan.Transfers = append(plan.Transfers, domain.Transfer{
			Direction: domain.DirDownload,
			Path:      rf.Path,
			Key:       RemoteKey(prefix, rf),
			Size:      rf.Size,
			Auxiliary: rf.Auxiliary,
			Reason:    reason,
		})
	}

	finish(plan)
	return plan
}

// finish orders transfers deterministically and fills in the stats
func finish(plan *domain.Plan) {
	sort.Slice(plan.Transfers, func(i, j int) bool {
		return plan.Transfers[i].Key < plan.Transfers[j].Key
	})
	for _, t := range plan.Transfers {
		plan.Stats.FilesToTransfer++
		plan.Stats.BytesToTransfer += t.Size
	}
}
