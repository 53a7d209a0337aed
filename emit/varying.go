package emit

import "fmt"

// Varying is a value written by the vertex stage and read by the fragment
// stage.
type Varying struct {
	Name     string
	Type     Type
	Flat     bool
	Location uint32
}

// VSOut returns the expression the vertex stage assigns.
func (v Varying) VSOut() string { return "out." + v.Name }

// FSIn returns the expression the fragment stage reads.
func (v Varying) FSIn() string { return "in." + v.Name }

// VaryingHandler allocates varyings and their locations.
type VaryingHandler struct {
	list  []Varying
	names map[string]bool
}

// Add declares a smoothly interpolated varying.
func (h *VaryingHandler) Add(name string, t Type) Varying {
	return h.add(name, t, false)
}

// AddFlat declares a varying without interpolation.
func (h *VaryingHandler) AddFlat(name string, t Type) Varying {
	return h.add(name, t, true)
}

// AddPassThrough declares a varying and writes expr into it from vs.
func (h *VaryingHandler) AddPassThrough(vs *ShaderBuilder, name string, t Type, expr string) Varying {
	v := h.Add(name, t)
	vs.Codef("%s = %s;", v.VSOut(), expr)
	return v
}

func (h *VaryingHandler) add(name string, t Type, flat bool) Varying {
	if h.names == nil {
		h.names = make(map[string]bool)
	}
	mangled := "v_" + name
	for i := 1; h.names[mangled]; i++ {
		mangled = fmt.Sprintf("v_%s_%d", name, i)
	}
	h.names[mangled] = true
	v := Varying{Name: mangled, Type: t, Flat: flat, Location: uint32(len(h.list))}
	h.list = append(h.list, v)
	return v
}

// List returns the declared varyings in location order.
func (h *VaryingHandler) List() []Varying { return h.list }
