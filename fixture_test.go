package storagecheck

import (
	"encoding/json"
	"strconv"
	"testing"
)

// fixture is a mutable storage layout report used to derive candidates from
// a reference layout.
type fixture struct {
	storage []map[string]any
	types   map[string]map[string]any
}

func variable(label, typ string, slot, offset int) map[string]any {
	return map[string]any{
		"astId":    len(label),
		"contract": "src/Storage.sol:Storage",
		"label":    label,
		"offset":   offset,
		"slot":     strconv.Itoa(slot),
		"type":     typ,
	}
}

func inplaceType(label string, size int) map[string]any {
	return map[string]any{
		"encoding":      "inplace",
		"label":         label,
		"numberOfBytes": strconv.Itoa(size),
	}
}

func structType(label string, size int, members ...map[string]any) map[string]any {
	t := inplaceType(label, size)
	t["members"] = members
	return t
}

func fixedArrayType(label, base string, size int) map[string]any {
	t := inplaceType(label, size)
	t["base"] = base
	return t
}

func dynamicArrayType(label, base string) map[string]any {
	return map[string]any{
		"encoding":      "dynamic_array",
		"label":         label,
		"numberOfBytes": "32",
		"base":          base,
	}
}

func mappingType(label, key, value string) map[string]any {
	return map[string]any{
		"encoding":      "mapping",
		"label":         label,
		"numberOfBytes": "32",
		"key":           key,
		"value":         value,
	}
}

func structMembers() []map[string]any {
	return []map[string]any{
		variable("a", "t_bool", 0, 0),
		variable("b", "t_uint256", 1, 0),
		variable("c", "t_uint32", 2, 0),
		variable("d", "t_uint32", 2, 4),
	}
}

// Reference layout, in storage order:
//
//	slot 0      uint8 _initialized; bool _initializing
//	slot 1-10   uint256[10] __gap
//	slot 11     address _owner
//	slot 12     Struct[] structs
//	slot 13     mapping(address => uint256) balanceOf
//	slot 14-16  Struct myStruct
//	slot 17     mapping(address => mapping(address => uint256)) nested
//	slot 18     IERC20 token
func newFixture() *fixture {
	return &fixture{
		storage: []map[string]any{
			variable("_initialized", "t_uint8", 0, 0),
			variable("_initializing", "t_bool", 0, 1),
			variable("__gap", "t_array(t_uint256)10_storage", 1, 0),
			variable("_owner", "t_address", 11, 0),
			variable("structs", "t_array(t_struct(Struct)42_storage)dyn_storage", 12, 0),
			variable("balanceOf", "t_mapping(t_address,t_uint256)", 13, 0),
			variable("myStruct", "t_struct(Struct)42_storage", 14, 0),
			variable("nested", "t_mapping(t_address,t_mapping(t_address,t_uint256))", 17, 0),
			variable("token", "t_contract(IERC20)77", 18, 0),
		},
		types: map[string]map[string]any{
			"t_address":                    inplaceType("address", 20),
			"t_bool":                       inplaceType("bool", 1),
			"t_uint8":                      inplaceType("uint8", 1),
			"t_uint16":                     inplaceType("uint16", 2),
			"t_uint32":                     inplaceType("uint32", 4),
			"t_uint128":                    inplaceType("uint128", 16),
			"t_uint160":                    inplaceType("uint160", 20),
			"t_uint192":                    inplaceType("uint192", 24),
			"t_uint256":                    inplaceType("uint256", 32),
			"t_contract(IERC20)77":         inplaceType("contract IERC20", 20),
			"t_array(t_uint256)10_storage": fixedArrayType("uint256[10]", "t_uint256", 320),
			"t_array(t_uint256)9_storage":  fixedArrayType("uint256[9]", "t_uint256", 288),
			"t_array(t_struct(Struct)42_storage)dyn_storage": dynamicArrayType(
				"struct Storage.Struct[]", "t_struct(Struct)42_storage"),
			"t_struct(Struct)42_storage": structType("struct Storage.Struct", 96, structMembers()...),
			"t_mapping(t_address,t_uint256)": mappingType(
				"mapping(address => uint256)", "t_address", "t_uint256"),
			"t_mapping(t_address,t_mapping(t_address,t_uint256))": mappingType(
				"mapping(address => mapping(address => uint256))", "t_address", "t_mapping(t_address,t_uint256)"),
		},
	}
}

// set replaces the variable labeled label, or appends v if there is none.
func (f *fixture) set(label string, v map[string]any) *fixture {
	for i, existing := range f.storage {
		if existing["label"] == label {
			f.storage[i] = v
			return f
		}
	}
	f.storage = append(f.storage, v)
	return f
}

// insertAfter inserts v right after the variable labeled label.
func (f *fixture) insertAfter(label string, v map[string]any) *fixture {
	for i, existing := range f.storage {
		if existing["label"] == label {
			f.storage = append(f.storage[:i+1], append([]map[string]any{v}, f.storage[i+1:]...)...)
			return f
		}
	}
	f.storage = append(f.storage, v)
	return f
}

func (f *fixture) remove(label string) *fixture {
	for i, existing := range f.storage {
		if existing["label"] == label {
			f.storage = append(f.storage[:i], f.storage[i+1:]...)
			return f
		}
	}
	return f
}

func (f *fixture) withType(id string, t map[string]any) *fixture {
	f.types[id] = t
	return f
}

func (f *fixture) json(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"storage": f.storage,
		"types":   f.types,
	})
	if err != nil {
		t.Fatalf("Failed to marshal fixture: %v", err)
	}
	return data
}

func (f *fixture) layout(t *testing.T) *Layout {
	t.Helper()
	layout, err := ParseLayout(f.json(t))
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	return layout
}
