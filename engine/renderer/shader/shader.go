package shader

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-voxel/common"
)

// ShaderType identifies the pipeline stage a shader entry point runs in.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex stage.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment stage, paired with a vertex shader.
	ShaderTypeFragment

	// ShaderTypeCompute is a compute entry point. Compute modules have no other stage.
	ShaderTypeCompute
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	case ShaderTypeCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// ErrNoEntryPoint is wrapped in an AssetLoadError when WGSL source has no entry point for the requested stage.
var ErrNoEntryPoint = errors.New("no entry point for shader stage")

// shader is the implementation of the Shader interface.
type shader struct {
	name         string
	source       string
	shaderType   ShaderType
	entryPoint   string
	declarations []Declaration
}

// Shader is one stage of a WGSL module: the module source plus the entry point and resource declarations
// parsed from it. Vertex and fragment shaders built from the same module share source text.
type Shader interface {
	// Key retrieves the unique identifier for this shader stage, used for caching and pipeline labels.
	//
	// Returns:
	//   - string: "<name>:<stage>", e.g. "scene:vertex"
	Key() string

	// Name returns the module name the shader was built from.
	//
	// Returns:
	//   - string: the module name, e.g. "scene"
	Name() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point function name (e.g. "vs_main")
	EntryPoint() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment or ShaderTypeCompute
	ShaderType() ShaderType

	// Declarations returns the @group/@binding resource declarations found in the module, sorted by group
	// then binding.
	//
	// Returns:
	//   - []Declaration: the declared resources
	Declarations() []Declaration
}

var _ Shader = &shader{}

// NewShader parses WGSL source for the entry point of the given stage and its resource declarations.
//
// Parameters:
//   - name: the module name, used for keys and errors
//   - shaderType: the stage the shader is used for
//   - source: the WGSL source text
//
// Returns:
//   - Shader: the parsed shader
//   - error: *common.AssetLoadError wrapping ErrNoEntryPoint if the stage has no entry point
func NewShader(name string, shaderType ShaderType, source string) (Shader, error) {
	cleaned := stripComments(source)
	entry := parseEntryPoint(cleaned, shaderType)
	if entry == "" {
		return nil, &common.AssetLoadError{Path: name, Err: fmt.Errorf("%w: %s", ErrNoEntryPoint, shaderType)}
	}
	return &shader{
		name:         name,
		source:       source,
		shaderType:   shaderType,
		entryPoint:   entry,
		declarations: parseDeclarations(cleaned),
	}, nil
}

func (s *shader) Key() string {
	return s.name + ":" + s.shaderType.String()
}

func (s *shader) Name() string {
	return s.name
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) Declarations() []Declaration {
	return s.declarations
}
