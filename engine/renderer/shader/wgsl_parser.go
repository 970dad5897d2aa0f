package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Declaration is one module-scope resource variable declared with @group and @binding.
type Declaration struct {
	Group   uint32
	Binding uint32
	// AddressSpace is the var template, e.g. "uniform" or "storage, read". Empty for textures and samplers.
	AddressSpace string
	Name         string
	Type         string
}

// IsUniform reports whether the declaration is a uniform buffer.
func (d Declaration) IsUniform() bool {
	return d.AddressSpace == "uniform"
}

// IsStorage reports whether the declaration is a storage buffer.
func (d Declaration) IsStorage() bool {
	return strings.HasPrefix(d.AddressSpace, "storage")
}

// IsSampler reports whether the declaration is a sampler.
func (d Declaration) IsSampler() bool {
	return d.Type == "sampler" || d.Type == "sampler_comparison"
}

// IsTexture reports whether the declaration is a texture.
func (d Declaration) IsTexture() bool {
	return strings.HasPrefix(d.Type, "texture_")
}

// IsStorageTexture reports whether the declaration is a texture written by a compute shader.
func (d Declaration) IsStorageTexture() bool {
	return strings.HasPrefix(d.Type, "texture_storage_")
}

// IsCubeTexture reports whether the declaration is a sampled cube map.
func (d Declaration) IsCubeTexture() bool {
	return strings.HasPrefix(d.Type, "texture_cube")
}

var (
	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// computeEntryRegex matches @compute functions, skipping the @workgroup_size attribute
	computeEntryRegex = regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> camera: CameraUniform;
	// or handle types: @group(1) @binding(0) var diffuse_texture: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseEntryPoint extracts the entry point function name for the given shader type
// from WGSL source. Returns an empty string if no matching entry point annotation is found.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//   - shaderType: the stage to search for
//
// Returns:
//   - string: the entry point function name, or empty string if not found
func parseEntryPoint(source string, shaderType ShaderType) string {
	var re *regexp.Regexp
	switch shaderType {
	case ShaderTypeVertex:
		re = vertexEntryRegex
	case ShaderTypeFragment:
		re = fragmentEntryRegex
	case ShaderTypeCompute:
		re = computeEntryRegex
	default:
		return ""
	}

	if match := re.FindStringSubmatch(source); match != nil {
		return match[1]
	}
	return ""
}

// parseDeclarations extracts every @group/@binding variable, sorted by group then binding.
func parseDeclarations(source string) []Declaration {
	matches := bindGroupDeclRegex.FindAllStringSubmatch(source, -1)
	out := make([]Declaration, 0, len(matches))
	for _, match := range matches {
		group, _ := strconv.ParseUint(match[1], 10, 32)
		binding, _ := strconv.ParseUint(match[2], 10, 32)
		out = append(out, Declaration{
			Group:        uint32(group),
			Binding:      uint32(binding),
			AddressSpace: strings.Join(strings.Fields(match[3]), " "),
			Name:         strings.TrimSpace(match[4]),
			Type:         strings.TrimSpace(match[5]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Binding < out[j].Binding
	})
	return out
}

// stripComments removes all WGSL comments (both line and block) from the source
//
// Parameters:
//   - source: raw WGSL source string
//
// Returns:
//   - string: source with all comments removed
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source so they
// do not interfere with declaration parsing
func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments (/* ... */) from WGSL source,
// handling nested block comments per the WGSL grammar
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	i := 0
	for i < len(source) {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i += 2
				continue
			}
			if source[i] == '*' && source[i+1] == '/' {
				if depth > 0 {
					depth--
				}
				i += 2
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
		i++
	}
	return sb.String()
}
