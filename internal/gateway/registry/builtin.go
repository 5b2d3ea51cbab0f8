package registry

// Catalog namespaces. Shapes in the extended namespace get the secondary
// wire prefix on response annotation.
const (
	NamespacePrimary  = "http://schemas.recordwire.dev/2011/contracts"
	NamespaceExtended = "http://schemas.recordwire.dev/2011/contracts/extended"
)

// Builtin returns the registration table for the message catalog the engine
// ships with. Engines with additional messages append to this before
// constructing the registry.
func Builtin() Catalog {
	return Catalog{
		Shapes: []Shape{
			{
				Name:      "CreateRequest",
				Namespace: NamespacePrimary,
				Params:    []ParamSpec{{Name: "Target"}},
			},
			{
				Name:      "UpdateRequest",
				Namespace: NamespacePrimary,
				Params:    []ParamSpec{{Name: "Target"}},
			},
			{
				Name:      "DeleteRequest",
				Namespace: NamespacePrimary,
				Params:    []ParamSpec{{Name: "Target"}},
			},
			{
				Name:      "RetrieveRequest",
				Namespace: NamespacePrimary,
				Params: []ParamSpec{
					{Name: "Target"},
					{Name: "Columns", Optional: true},
				},
			},
			{
				Name:      "RetrieveMultipleRequest",
				Namespace: NamespacePrimary,
				Params:    []ParamSpec{{Name: "Query"}},
			},
			{
				Name:      "WhoAmIRequest",
				Namespace: NamespacePrimary,
			},
			{
				Name:      "AssociateRequest",
				Namespace: NamespacePrimary,
				Params: []ParamSpec{
					{Name: "Target"},
					{Name: "RelatedRecords"},
					{Name: "Relationship", Optional: true},
				},
			},
			{
				Name:      "SetStateRequest",
				Namespace: NamespacePrimary,
				Params: []ParamSpec{
					{Name: "Target"},
					{Name: "State"},
				},
			},
			{
				Name:      "BatchExecuteRequest",
				Namespace: NamespacePrimary,
				Params: []ParamSpec{
					{Name: "Messages"},
					{Name: "Settings", Optional: true},
				},
			},
			{
				Name:      "RetrieveVersionRequest",
				Namespace: NamespaceExtended,
			},
			{
				Name:      "MergeRecordsRequest",
				Namespace: NamespaceExtended,
				Params: []ParamSpec{
					{Name: "Target"},
					{Name: "Subordinate"},
					{Name: "UpdateContent", Optional: true},
				},
			},
			{
				Name:      "GrantAccessRequest",
				Namespace: NamespaceExtended,
				Params: []ParamSpec{
					{Name: "Target"},
					{Name: "Principal"},
					{Name: "AccessMask"},
				},
			},
		},
		Enums: []Enum{
			{
				Name:  "AccessRights",
				Flags: true,
				Members: []Member{
					{Name: "None", Value: 0},
					{Name: "Read", Value: 1},
					{Name: "Write", Value: 2},
					{Name: "Append", Value: 4},
					{Name: "AppendTo", Value: 8},
					{Name: "Create", Value: 16},
					{Name: "Delete", Value: 32},
					{Name: "Share", Value: 64},
					{Name: "Assign", Value: 128},
				},
			},
			{
				Name: "RecordState",
				Members: []Member{
					{Name: "Active", Value: 0},
					{Name: "Inactive", Value: 1},
				},
			},
			{
				Name: "PrivilegeDepth",
				Members: []Member{
					{Name: "Basic", Value: 0},
					{Name: "Local", Value: 1},
					{Name: "Deep", Value: 2},
					{Name: "Global", Value: 3},
				},
			},
			{
				Name: "ParticipationType",
				Members: []Member{
					{Name: "Sender", Value: 1},
					{Name: "Recipient", Value: 2},
					{Name: "Owner", Value: 9},
				},
			},
		},
		// Hints legacy clients are known to send for indexed enum types.
		Aliases: map[string]string{
			"AccessMask":     "AccessRights",
			"AccessRightsEx": "AccessRights",
			"StateCode":      "RecordState",
			"Depth":          "PrivilegeDepth",
		},
	}
}
