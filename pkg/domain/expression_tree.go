package domain

// RelationOperator is the comparison an AtomicCriterion applies between an
// entity's observed value and a threshold.
type RelationOperator string

const (
	OpEQ           RelationOperator = "="
	OpNEQ          RelationOperator = "!="
	OpGT           RelationOperator = ">"
	OpGTE          RelationOperator = ">="
	OpLT           RelationOperator = "<"
	OpLTE          RelationOperator = "<="
	OpWithin       RelationOperator = "within"
	OpNotInLast    RelationOperator = "not_in_last"
	OpContains     RelationOperator = "contains"
	OpNotContains  RelationOperator = "not_contains"
)

// AtomicCriterion is a leaf of the expression tree: one entity, one operator,
// one value, optional unit/negation.
//
// Invariant: range constraints are modeled as two AtomicCriterion rows joined
// by an AND CompositeCriterion, never as a single atom with two bounds.
type AtomicCriterion struct {
	ID                  string
	CriterionID         string
	ProtocolID          string
	InclusionExclusion  CriteriaType
	EntityDomain        *string
	EntityConceptID     *string
	EntityConceptSystem *string
	RelationOperator    RelationOperator
	ValueNumeric        *float64
	ValueText           *string
	UnitText            *string
	UnitConceptID       *string
	Negation            bool
}

// LogicOperator is the boolean connective of a CompositeCriterion.
type LogicOperator string

const (
	LogicAND LogicOperator = "AND"
	LogicOR  LogicOperator = "OR"
	LogicNOT LogicOperator = "NOT"
)

// CompositeCriterion is an interior node of the expression tree.
//
// Invariant: NOT has exactly one child; AND/OR have at least two.
type CompositeCriterion struct {
	ID            string
	CriterionID   string
	ProtocolID    string
	LogicOperator LogicOperator
}

// ValidChildCount reports whether childCount children is legal for this
// composite's logic operator.
func (c CompositeCriterion) ValidChildCount(childCount int) bool {
	switch c.LogicOperator {
	case LogicNOT:
		return childCount == 1
	case LogicAND, LogicOR:
		return childCount >= 2
	default:
		return false
	}
}

// NodeKind distinguishes which table a CriterionRelationship endpoint targets.
type NodeKind string

const (
	NodeKindAtomic    NodeKind = "atomic"
	NodeKindComposite NodeKind = "composite"
)

// TreeNode is one yet-unpersisted expression-tree element the structure node
// builds before handing the whole tree to a repository in one transaction.
// A TreeNode is either an AtomicCriterion (Atomic != nil) or a
// CompositeCriterion (Composite != nil) with Children naming its ordered
// descendants by their index in the same slice.
type TreeNode struct {
	Atomic    *AtomicCriterion
	Composite *CompositeCriterion
	Children  []int
}

// CriterionRelationship is a parent→child edge within one Criterion's
// expression tree, ordered by ChildSequence. Cross-criterion references are
// forbidden: ParentID always names a CompositeCriterion of the same
// CriterionID as ChildID's owner.
type CriterionRelationship struct {
	ID            string
	CriterionID   string
	ParentID      string
	ChildID       string
	ChildKind     NodeKind
	ChildSequence int
}
