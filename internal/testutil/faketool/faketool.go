// Package faketool writes stand-in executables for the external tools so
// runner and client tests can exercise real process launches.
package faketool

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Script writes an executable shell script named name into a temp dir and
// returns its path. Tests are skipped on Windows.
func Script(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}

	path := filepath.Join(t.TempDir(), name)
	content := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

// Elastix returns a fake elastix that writes TransformParameters.<i>.txt for
// every -p it is given plus result.<last>.mhd and one iteration log per stage.
func Elastix(t *testing.T) string {
	t.Helper()
	return Script(t, "elastix", `
out=""
n=0
while [ $# -gt 0 ]; do
	case "$1" in
		-out) out="$2"; shift 2 ;;
		-p) n=$((n+1)); shift 2 ;;
		*) shift ;;
	esac
done
i=0
while [ $i -lt $n ]; do
	echo "(Transform \"BSplineTransform\")" > "$out/TransformParameters.$i.txt"
	printf '1:ItNr\t2:Metric\tTime[ms]\n0\t1.5\t0.2\n1\t0.75\t0.3\n' > "$out/IterationInfo.$i.R0.txt"
	i=$((i+1))
done
last=$((n-1))
touch "$out/result.$last.mhd"
echo "registration done"
`)
}

// Transformix returns a fake transformix that records its arguments in
// args.txt inside the output directory and writes the file named by the
// FAKE_OUTPUT environment variable there.
func Transformix(t *testing.T) string {
	t.Helper()
	return Script(t, "transformix", `
out=""
prev=""
for a in "$@"; do
	if [ "$prev" = "-out" ]; then out="$a"; fi
	prev="$a"
done
echo "$@" > "$out/args.txt"
if [ -n "$FAKE_OUTPUT" ]; then touch "$out/$FAKE_OUTPUT"; fi
`)
}
