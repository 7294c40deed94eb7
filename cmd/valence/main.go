// Valence CLI - inspect class registries, snapshot them, browse stored objects
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/valence/manifest"
	"github.com/chazu/valence/object"
	"github.com/chazu/valence/snapshot"
	"github.com/chazu/valence/store"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	dir := flag.String("C", ".", "Project directory (walks up to find valence.toml)")
	tree := flag.Bool("tree", false, "Print the class hierarchy as a tree")
	ancestorsOf := flag.String("ancestors", "", "Print the linearized ancestors of the named class")
	digests := flag.Bool("digests", false, "Print content digests for every class")
	save := flag.Bool("save", false, "Write a class snapshot")
	restore := flag.Bool("restore", false, "Restore the class snapshot before other actions")
	snapshotPath := flag.String("snapshot", "", "Snapshot file (default: the manifest's snapshot path)")
	objects := flag.Bool("objects", false, "List stored objects grouped by class")
	dbPath := flag.String("db", "", "Object database (default: the manifest's store path)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: valence [options]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the class taxonomy from valence.toml and inspects or persists it.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  valence                          # Summarize the project\n")
		fmt.Fprintf(os.Stderr, "  valence -tree                    # Show the class hierarchy\n")
		fmt.Fprintf(os.Stderr, "  valence -ancestors Dog           # Show Dog's linearization\n")
		fmt.Fprintf(os.Stderr, "  valence -save                    # Snapshot to the manifest path\n")
		fmt.Fprintf(os.Stderr, "  valence -save -snapshot out.vsnap\n")
		fmt.Fprintf(os.Stderr, "  valence -restore -digests        # Digest a restored snapshot\n")
		fmt.Fprintf(os.Stderr, "  valence -objects -db objects.db  # Browse a specific database\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	reg := object.NewRegistry()

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	var defaultSnapshot, defaultDB string
	if m != nil {
		created, err := manifest.NewResolver(m).Apply(reg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Printf("Loaded %d classes from %s\n", len(created), filepath.Join(m.Dir, "valence.toml"))
		}
		defaultSnapshot = m.SnapshotPath()
		defaultDB = m.StorePath()
	}

	if *restore {
		path, err := resolvePath(*snapshotPath, defaultSnapshot, "-snapshot")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		s, err := snapshot.Read(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := snapshot.Restore(reg, s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Printf("Restored %d classes from %s\n", len(s.Classes), path)
		}
	}

	acted := false

	if *tree {
		printTree(reg)
		acted = true
	}

	if *ancestorsOf != "" {
		if err := printAncestors(reg, *ancestorsOf); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		acted = true
	}

	if *digests {
		if err := printDigests(reg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		acted = true
	}

	if *save {
		path, err := resolvePath(*snapshotPath, defaultSnapshot, "-snapshot")
		if err == nil {
			err = snapshot.Write(path, snapshot.Capture(reg))
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d classes to %s\n", reg.Len(), path)
		acted = true
	}

	if *objects {
		path, err := resolvePath(*dbPath, defaultDB, "-db")
		if err == nil {
			err = printObjects(reg, path)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		acted = true
	}

	if !acted {
		printSummary(reg, m)
	}
}

// resolvePath picks an explicit flag value over the manifest's configured
// path. With neither available there is nothing to act on.
func resolvePath(explicit, configured, flagName string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if configured != "" {
		return configured, nil
	}
	return "", fmt.Errorf("no valence.toml found; pass %s", flagName)
}

// printSummary shows what the registry holds.
func printSummary(reg *object.Registry, m *manifest.Manifest) {
	if m != nil {
		name := m.Project.Name
		if m.Project.Version != "" {
			name += " " + m.Project.Version
		}
		fmt.Printf("Project:  %s\n", name)
		fmt.Printf("Store:    %s\n", m.StorePath())
		fmt.Printf("Snapshot: %s\n", m.SnapshotPath())
	} else {
		fmt.Println("Project:  (no valence.toml)")
	}
	fmt.Printf("Classes:  %d\n", reg.Len())
}

// printTree prints the hierarchy rooted at ancestor-less classes. A class
// with several direct ancestors appears once under each of them.
func printTree(reg *object.Registry) {
	var roots []*object.Class
	for _, c := range reg.All() {
		if len(c.DirectAncestors()) == 0 {
			roots = append(roots, c)
		}
	}
	sortByName(roots)
	for _, root := range roots {
		printSubtree(root, 0)
	}
}

func printSubtree(c *object.Class, depth int) {
	fmt.Printf("%s%s\n", strings.Repeat("  ", depth), c.Name())

	var children []*object.Class
	for _, d := range c.Descendants() {
		if dist, ok := d.DistanceTo(c); ok && dist == 1 {
			children = append(children, d)
		}
	}
	sortByName(children)
	for _, child := range children {
		printSubtree(child, depth+1)
	}
}

// printAncestors prints a class's linearization with distances.
func printAncestors(reg *object.Registry, name string) error {
	c := reg.Lookup(name)
	if c == nil {
		return fmt.Errorf("class %q not found", name)
	}

	fmt.Println(c.Name())
	for _, a := range c.Ancestors() {
		fmt.Printf("  %d %s\n", a.Distance, a.Class.Name())
	}
	return nil
}

// printDigests prints one content digest per class, sha256sum style.
func printDigests(reg *object.Registry) error {
	for _, c := range reg.All() {
		d, err := snapshot.DigestClass(c)
		if err != nil {
			return fmt.Errorf("digesting %s: %w", c.Name(), err)
		}
		fmt.Printf("%x  %s\n", d, c.Name())
	}
	return nil
}

// printObjects loads every stored object and groups the ids by class.
func printObjects(reg *object.Registry, path string) error {
	st, err := store.Open(path, reg)
	if err != nil {
		return err
	}
	defer st.Close()

	loaded, err := st.LoadAll()
	if err != nil {
		return err
	}

	byClass := make(map[string][]string)
	for _, o := range loaded {
		name := o.Class().Name()
		byClass[name] = append(byClass[name], o.ID())
	}

	names := make([]string, 0, len(byClass))
	for name := range byClass {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ids := byClass[name]
		sort.Strings(ids)
		fmt.Printf("%s (%d)\n", name, len(ids))
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
	}
	if len(loaded) == 0 {
		fmt.Println("(no objects)")
	}
	return nil
}

func sortByName(classes []*object.Class) {
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Name() < classes[j].Name()
	})
}
