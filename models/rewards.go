package models

import "sort"

// RewardStatus describes where a participant stands against a series' reward
// ladder.
type RewardStatus struct {
	Target       int     `json:"target"`
	Progress     float64 `json:"progress"`
	CurrentCount int     `json:"current_count"`
	CanClaim     bool    `json:"can_claim"`
	AllClaimed   bool    `json:"all_claimed"`
}

// NormalizeRewardThresholds filters administered threshold values down to
// positive integers, deduplicated and sorted ascending. Series documents are
// edited by hand, so garbage values are expected.
func NormalizeRewardThresholds(input []int) []int {
	seen := make(map[int]struct{}, len(input))
	out := make([]int, 0, len(input))
	for _, v := range input {
		if v <= 0 {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// GetRewardStatus computes the next claimable target for a participant given
// the series thresholds, the thresholds already claimed, and the number of
// sessions attended. Returns nil when the series has no usable thresholds.
func GetRewardStatus(rewards, claimedRewards []int, sessionsAttended int) *RewardStatus {
	thresholds := NormalizeRewardThresholds(rewards)
	if len(thresholds) == 0 {
		return nil
	}

	claimed := make(map[int]struct{}, len(claimedRewards))
	for _, v := range claimedRewards {
		claimed[v] = struct{}{}
	}

	next := 0
	hasNext := false
	for _, t := range thresholds {
		if _, ok := claimed[t]; !ok {
			next = t
			hasNext = true
			break
		}
	}

	target := next
	if !hasNext {
		target = thresholds[len(thresholds)-1]
	}

	current := sessionsAttended
	if current > target {
		current = target
	}

	status := &RewardStatus{
		Target:       target,
		CurrentCount: current,
		AllClaimed:   !hasNext,
		CanClaim:     hasNext && sessionsAttended >= next,
	}
	if target > 0 {
		status.Progress = float64(current) / float64(target)
	}
	return status
}
