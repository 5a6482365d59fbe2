package domain

// StatusCounts maps a comment status to the number of comments in it.
type StatusCounts map[CommentStatus]int

// ActionCounts maps an action tag to the number of actions of that kind.
type ActionCounts map[ActionTag]int

// MergeCommentStatusCount sums every status across counts. The result is
// independent of input order and the inputs are left untouched.
func MergeCommentStatusCount(counts []StatusCounts) StatusCounts {
	out := make(StatusCounts)
	for _, c := range counts {
		for status, n := range c {
			out[status] += n
		}
	}
	return out
}

// MergeCommentActionCounts sums every action tag across counts.
func MergeCommentActionCounts(counts ...ActionCounts) ActionCounts {
	out := make(ActionCounts)
	for _, c := range counts {
		for tag, n := range c {
			out[tag] += n
		}
	}
	return out
}

// CalculateTotalCommentCount returns the number of comments across statuses.
func CalculateTotalCommentCount(counts StatusCounts) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// CountTotalActionCounts returns the number of actions across tags.
func CountTotalActionCounts(counts ActionCounts) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// Clone returns a copy of the status counts that is safe to mutate.
func (c StatusCounts) Clone() StatusCounts {
	out := make(StatusCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Clone returns a copy of the action counts that is safe to mutate.
func (c ActionCounts) Clone() ActionCounts {
	out := make(ActionCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
