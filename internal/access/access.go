// Package access is the permission evaluator: a pure mapping from a
// (folder snapshot, actor) pair to a capability set. It performs no I/O and
// is consulted identically by the read path and the write path so the two
// can never disagree.
package access

import "cubby/internal/domain/models"

// Decision is the derived capability set for one (folder, actor) pair.
// It is computed per check and never cached beyond it.
type Decision struct {
	CanView       bool `json:"can_view"`
	CanContribute bool `json:"can_contribute"`
	CanManage     bool `json:"can_manage"`
}

// Evaluate computes the access decision for actorID on folder.
//
// Manage (settings, lock, membership, delete) is owner-only. View is granted
// to the owner, to everyone on a public folder, and to contributors of a
// shared folder. Contribute is granted to the owner and to contributors of a
// shared, unlocked folder; a public folder never grants contribute to
// non-owners, and the lock never affects view.
func Evaluate(folder *models.Folder, actorID string) Decision {
	if folder == nil || actorID == "" {
		return Decision{CanView: folder != nil && folder.IsPublic}
	}

	if actorID == folder.OwnerID {
		return Decision{CanView: true, CanContribute: true, CanManage: true}
	}

	isContributor := folder.IsShared && folder.HasContributor(actorID)

	return Decision{
		CanView:       folder.IsPublic || isContributor,
		CanContribute: isContributor && !folder.IsLocked,
	}
}
