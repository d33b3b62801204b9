package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hookData struct {
	Name    string
	Account string
	Home    string
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		data    any
		want    string
		wantErr bool
	}{
		{
			name: "simple substitution",
			tmpl: "echo {{ .Account }}",
			data: hookData{Account: "alcl_me_dev"},
			want: "echo alcl_me_dev",
		},
		{
			name: "multiple variables",
			tmpl: `cd "{{ .Home }}" && echo "{{ .Name }}"`,
			data: hookData{Name: "dev", Home: "/Users/alcl_me_dev"},
			want: `cd "/Users/alcl_me_dev" && echo "dev"`,
		},
		{
			name: "map data",
			tmpl: "{{ .Name }}",
			data: map[string]string{"Name": "dev-1"},
			want: "dev-1",
		},
		{
			name: "no variables",
			tmpl: "static string",
			data: nil,
			want: "static string",
		},
		{
			name:    "missing key errors",
			tmpl:    "{{ .Missing }}",
			data:    map[string]string{"Name": "test"},
			wantErr: true,
		},
		{
			name:    "invalid template syntax",
			tmpl:    "{{ .Name }",
			data:    map[string]string{"Name": "test"},
			wantErr: true,
		},
		{
			name: "shq quotes value",
			tmpl: "echo {{ shq .Name }}",
			data: map[string]string{"Name": "it's"},
			want: `echo 'it'\''s'`,
		},
		{
			name: "shjoin quotes each word",
			tmpl: "brew install {{ shjoin .Tools }}",
			data: map[string][]string{"Tools": {"git", "python@3.12"}},
			want: "brew install 'git' 'python@3.12'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"simple", "'simple'"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
		{"$HOME", "'$HOME'"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShellQuote(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	_, err := Parse("{{ .Name ")
	require.Error(t, err)

	_, err = Parse("{{ shq .Name }}")
	require.NoError(t, err)
}
