package callstore

// The store's filter grammar is Mongo-style: field conditions combined with
// $and / $or, comparison operators nested under the field name. Expressions
// marshal directly to the JSON the store expects.

// Filterable call record fields.
const (
	FieldStartsAt  = "starts_at"
	FieldCreatedBy = "created_by_user_id"
	FieldMembers   = "members"
	FieldEndedAt   = "ended_at"
)

// Expr is a filter expression.
type Expr map[string]interface{}

// And combines expressions conjunctively.
func And(exprs ...Expr) Expr {
	return Expr{"$and": exprs}
}

// Or combines expressions disjunctively.
func Or(exprs ...Expr) Expr {
	return Expr{"$or": exprs}
}

// Eq matches records whose field equals v.
func Eq(field string, v interface{}) Expr {
	return Expr{field: v}
}

// Gte matches records whose field is >= v.
func Gte(field string, v interface{}) Expr {
	return Expr{field: map[string]interface{}{"$gte": v}}
}

// Lte matches records whose field is <= v.
func Lte(field string, v interface{}) Expr {
	return Expr{field: map[string]interface{}{"$lte": v}}
}

// Lt matches records whose field is < v.
func Lt(field string, v interface{}) Expr {
	return Expr{field: map[string]interface{}{"$lt": v}}
}

// Exists matches records where the field is present.
func Exists(field string) Expr {
	return Expr{field: map[string]interface{}{"$exists": true}}
}

// In matches records whose field contains any of the given values.
func In(field string, values ...string) Expr {
	return Expr{field: map[string]interface{}{"$in": values}}
}

// VisibleTo matches calls the user created or is a member of.
func VisibleTo(userID string) Expr {
	return Or(
		Eq(FieldCreatedBy, userID),
		In(FieldMembers, userID),
	)
}

// Sort directions in the store's wire encoding.
const (
	Ascending  = 1
	Descending = -1
)

// Sort is a single server-side sort directive.
type Sort struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

// SortAsc sorts ascending by field.
func SortAsc(field string) Sort {
	return Sort{Field: field, Direction: Ascending}
}

// SortDesc sorts descending by field.
func SortDesc(field string) Sort {
	return Sort{Field: field, Direction: Descending}
}
