package graph

import "fmt"

// EntityType is the kind of an Entity.
//
// The known kinds are a closed set. Any other tag (read back from the
// database or sent by a client) is preserved verbatim as an extension kind,
// for which IsKnown reports false.
type EntityType struct {
	known bool
	tag   string
}

var (
	EntityFile     = EntityType{known: true, tag: "FILE"}
	EntityFunction = EntityType{known: true, tag: "FUNCTION"}
	EntityClass    = EntityType{known: true, tag: "CLASS"}
)

var knownEntityTypes = map[string]EntityType{
	EntityFile.tag:     EntityFile,
	EntityFunction.tag: EntityFunction,
	EntityClass.tag:    EntityClass,
}

// ParseEntityType maps a raw tag to its EntityType. Unknown tags yield an
// extension kind carrying the raw string.
func ParseEntityType(s string) EntityType {
	if t, ok := knownEntityTypes[s]; ok {
		return t
	}
	return EntityType{tag: s}
}

func (t EntityType) String() string { return t.tag }

// IsKnown reports whether t is one of the built-in kinds.
func (t EntityType) IsKnown() bool { return t.known }

func (t EntityType) MarshalText() ([]byte, error) { return []byte(t.tag), nil }

func (t *EntityType) UnmarshalText(b []byte) error {
	*t = ParseEntityType(string(b))
	return nil
}

// RelationType is the kind of a Relationship. Like EntityType it is a closed
// set of known kinds plus an extension kind for anything else.
type RelationType struct {
	known bool
	tag   string
}

var (
	RelationDefinesInFile = RelationType{known: true, tag: "DEFINES_IN_FILE"}
	RelationCalls         = RelationType{known: true, tag: "CALLS"}
	RelationImports       = RelationType{known: true, tag: "IMPORTS"}
	RelationUsesType      = RelationType{known: true, tag: "USES_TYPE"}
)

var knownRelationTypes = map[string]RelationType{
	RelationDefinesInFile.tag: RelationDefinesInFile,
	RelationCalls.tag:         RelationCalls,
	RelationImports.tag:       RelationImports,
	RelationUsesType.tag:      RelationUsesType,
}

// ParseRelationType maps a raw tag to its RelationType.
func ParseRelationType(s string) RelationType {
	if t, ok := knownRelationTypes[s]; ok {
		return t
	}
	return RelationType{tag: s}
}

func (t RelationType) String() string { return t.tag }

func (t RelationType) IsKnown() bool { return t.known }

func (t RelationType) MarshalText() ([]byte, error) { return []byte(t.tag), nil }

func (t *RelationType) UnmarshalText(b []byte) error {
	*t = ParseRelationType(string(b))
	return nil
}

// Entity is a named, typed node of the code graph.
// (Name, Type, FilePath) is unique; ID is assigned by the store.
type Entity struct {
	ID       int64      `json:"id,omitempty"`
	Name     string     `json:"name"`
	Type     EntityType `json:"type"`
	FilePath string     `json:"file_path"`
}

// FileEntity is the entity standing for a file. It is named by its path.
func FileEntity(filePath string) Entity {
	return Entity{Name: filePath, Type: EntityFile, FilePath: filePath}
}

// Relationship is a stored directed edge between two existing entities.
type Relationship struct {
	ID       int64        `json:"id"`
	SourceID int64        `json:"source_id"`
	TargetID int64        `json:"target_id"`
	Type     RelationType `json:"type"`
}

// PendingRelationship is an edge that has not been stored yet. Its endpoints
// are entity names, resolved to IDs at insert time.
type PendingRelationship struct {
	Source string       `json:"source"`
	Target string       `json:"target"`
	Type   RelationType `json:"type"`
}

func (r PendingRelationship) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", r.Source, r.Type, r.Target)
}

// FileRecord is one file's worth of extracted entities and relationships,
// the unit of ingestion.
type FileRecord struct {
	FilePath      string                `json:"file_path"`
	Entities      []Entity              `json:"entities"`
	Relationships []PendingRelationship `json:"relationships"`
}

// Endpoint identifies one end of an Edge.
type Endpoint struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (%s)", e.Name, e.Type)
}

// Edge is a stored relationship joined with both of its endpoints.
type Edge struct {
	ID     int64        `json:"id"`
	Source Endpoint     `json:"source"`
	Target Endpoint     `json:"target"`
	Type   RelationType `json:"relation"`
}

// Fact is the human-readable rendering of one relationship.
type Fact struct {
	Source       string `json:"source"`
	Relationship string `json:"relationship"`
	Target       string `json:"target"`
}

// FactFromEdge renders e as a Fact.
func FactFromEdge(e Edge) Fact {
	return Fact{
		Source:       e.Source.String(),
		Relationship: e.Type.String(),
		Target:       e.Target.String(),
	}
}

// String formats the fact as "source --[TYPE]--> target".
func (f Fact) String() string {
	return fmt.Sprintf("%s --[%s]--> %s", f.Source, f.Relationship, f.Target)
}
