package flagx

import (
	"flag"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		valueFlags []string
		boolFlags  []string
		want       []string
	}{
		{
			name:       "short flag with separate value",
			args:       []string{"-c", "conf.json", "-a", "localhost"},
			valueFlags: []string{"-c", "-config"},
			want:       []string{"-c", "conf.json"},
		},
		{
			name:       "flag with equals",
			args:       []string{"-config=alt.json", "-a", "localhost"},
			valueFlags: []string{"-c", "-config"},
			want:       []string{"-config=alt.json"},
		},
		{
			name:       "unknown flags ignored",
			args:       []string{"-x", "1", "--y=2", "positional"},
			valueFlags: []string{"-c"},
			want:       []string{},
		},
		{
			name:       "flag without value at end is kept as-is",
			args:       []string{"-o"},
			valueFlags: []string{"-o"},
			want:       []string{"-o"},
		},
		{
			name:       "flag followed by another flag",
			args:       []string{"-o", "-d", "db"},
			valueFlags: []string{"-o", "-d"},
			want:       []string{"-o", "-d", "db"},
		},
		{
			name:       "bool flag does not swallow next token",
			args:       []string{"-P", "positional", "-o", "/srv"},
			valueFlags: []string{"-o"},
			boolFlags:  []string{"-P"},
			want:       []string{"-P", "-o", "/srv"},
		},
		{
			name:      "bool flag with explicit value",
			args:      []string{"-P=false"},
			boolFlags: []string{"-P"},
			want:      []string{"-P=false"},
		},
		{
			name:       "repeated flag is preserved in order",
			args:       []string{"-b", "php", "-b", "html"},
			valueFlags: []string{"-b"},
			want:       []string{"-b", "php", "-b", "html"},
		},
		{
			name:       "empty args",
			args:       []string{},
			valueFlags: []string{"-c"},
			want:       []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.valueFlags, tt.boolFlags...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func Test_jsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short -c with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/path/short.json"}
		assert.Equal(t, "/path/short.json", JsonConfigFlags())
	})

	t.Run("long -config with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-o", "/srv", "-config", "/path/long.json"}
		assert.Equal(t, "/path/long.json", JsonConfigFlags())
	})

	t.Run("absent", func(t *testing.T) {
		os.Args = []string{"testbin", "-o", "/srv"}
		assert.Empty(t, JsonConfigFlags())
	})
}

func TestStringList(t *testing.T) {
	var l StringList
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	fs.Var(&l, "b", "list")

	require.NoError(t, fs.Parse([]string{"-b", "php, html", "-b", "asp,,"}))
	assert.Equal(t, StringList{"php", "html", "asp"}, l)
	assert.Equal(t, "php,html,asp", l.String())

	var nilList *StringList
	assert.Equal(t, "", nilList.String())
}
