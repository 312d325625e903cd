package docstore

import "go.mongodb.org/mongo-driver/bson"

// Method labels reported by Persist.
const (
	MethodContentService = "content_service"
	MethodNotFound       = "not_found"
)

// strategy is one (filter, update, label) attempt in the ordered scan over
// the possible storage shapes of a record.
type strategy struct {
	method      string
	filterField string
	// setPrefix is prepended to each updated field; the positional prefix
	// for nested-array matches, empty for top-level documents.
	setPrefix string
}

// strategies is the fixed attempt order: nested arrays by primary key
// (units first, the common case), then by the secondary id field, then the
// record as a top-level document. The order is a compatibility contract;
// first match wins, which also resolves malformed data matching more than
// one shape.
var strategies = []strategy{
	{method: "nested_units", filterField: "units._id", setPrefix: "units.$."},
	{method: "nested_children", filterField: "children._id", setPrefix: "children.$."},
	{method: "nested_subtopics", filterField: "subtopics._id", setPrefix: "subtopics.$."},
	{method: "nested_units_id", filterField: "units.id", setPrefix: "units.$."},
	{method: "nested_children_id", filterField: "children.id", setPrefix: "children.$."},
	{method: "nested_subtopics_id", filterField: "subtopics.id", setPrefix: "subtopics.$."},
	{method: "top_level", filterField: "_id", setPrefix: ""},
}

func (s strategy) filter(id any) bson.M {
	return bson.M{s.filterField: id}
}

func (s strategy) update(fields bson.M) bson.M {
	set := bson.M{}
	for k, v := range fields {
		set[s.setPrefix+k] = v
	}
	return bson.M{"$set": set}
}
