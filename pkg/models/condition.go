package models

// ComparisonOperator names a single guard comparison.
type ComparisonOperator string

const (
	OperatorEquals       ComparisonOperator = "eq"
	OperatorNotEquals    ComparisonOperator = "neq"
	OperatorGreaterThan  ComparisonOperator = "gt"
	OperatorLessThan     ComparisonOperator = "lt"
	OperatorGreaterEqual ComparisonOperator = "gte"
	OperatorLessEqual    ComparisonOperator = "lte"
	OperatorIn           ComparisonOperator = "in"
	OperatorContains     ComparisonOperator = "contains"
	OperatorStartsWith   ComparisonOperator = "starts_with"
	OperatorEndsWith     ComparisonOperator = "ends_with"
)

// LogicalOperator chains a condition's result to the next condition in the list.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// WorkflowCondition is a single field/operator/value guard. The logical
// operator on this condition governs how the NEXT condition in the list is
// folded into the running result, not how this one is.
type WorkflowCondition struct {
	Field    string             `json:"field"    validate:"required"`
	Operator ComparisonOperator `json:"operator" validate:"required,oneof=eq neq gt lt gte lte in contains starts_with ends_with"`
	Value    any                `json:"value"`
	Logical  LogicalOperator    `json:"logical,omitempty" validate:"omitempty,oneof=and or"`
}
