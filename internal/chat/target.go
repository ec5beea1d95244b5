package chat

// Target names a message destination explicitly instead of inferring it from
// which optional id field happens to be set.
type TargetKind uint8

const (
	TargetDirect TargetKind = iota
	TargetGroup
)

type Target struct {
	Kind TargetKind
	ID   int64
}

func DirectTarget(userID int64) Target {
	return Target{Kind: TargetDirect, ID: userID}
}

func GroupTarget(groupID int64) Target {
	return Target{Kind: TargetGroup, ID: groupID}
}

func (t Target) IsGroup() bool { return t.Kind == TargetGroup }
