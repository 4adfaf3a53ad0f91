package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ProjectType classifies a directory's ecosystem.
type ProjectType string

// Known project types.
const (
	ProjectUnknown ProjectType = "unknown"
	ProjectGo      ProjectType = "go"
	ProjectRust    ProjectType = "rust"
	ProjectNode    ProjectType = "node"
	ProjectReact   ProjectType = "react"
	ProjectVue     ProjectType = "vue"
	ProjectAngular ProjectType = "angular"
	ProjectPython  ProjectType = "python"
	ProjectDjango  ProjectType = "django"
	ProjectFlask   ProjectType = "flask"
	ProjectJava    ProjectType = "java"
	ProjectSpring  ProjectType = "spring"
	ProjectRuby    ProjectType = "ruby"
	ProjectPHP     ProjectType = "php"
	ProjectLaravel ProjectType = "laravel"
	ProjectDotnet  ProjectType = "dotnet"
)

type marker struct {
	pattern string
	weight  int
}

// Marker weights reflect how unambiguous a file is: go.mod only ever means a
// Go module, while package.json is shared by several ecosystems.
var projectMarkers = map[ProjectType][]marker{
	ProjectGo: {
		{"go.mod", 100}, {"go.sum", 50}, {"main.go", 60}, {"cmd", 30},
	},
	ProjectRust: {
		{"Cargo.toml", 100}, {"src/main.rs", 60}, {"src/lib.rs", 60},
	},
	ProjectNode: {
		{"package.json", 20}, {"server.js", 50}, {"app.js", 40}, {"index.js", 30},
	},
	ProjectReact: {
		{"src/App.jsx", 90}, {"src/App.tsx", 90}, {"src/App.js", 80},
		{"src/index.jsx", 70}, {"src/index.tsx", 70}, {"public/index.html", 30},
	},
	ProjectVue: {
		{"vue.config.js", 90}, {"nuxt.config.js", 90}, {"nuxt.config.ts", 90},
		{"src/App.vue", 80}, {"src/main.js", 30},
	},
	ProjectAngular: {
		{"angular.json", 100}, {"src/app/app.module.ts", 80}, {"src/app/app.component.ts", 70},
	},
	ProjectPython: {
		{"setup.py", 70}, {"pyproject.toml", 70}, {"setup.cfg", 60},
		{"requirements.txt", 30}, {"Pipfile", 50}, {"poetry.lock", 50},
	},
	ProjectDjango: {
		{"manage.py", 90}, {"wsgi.py", 40}, {"settings.py", 50}, {"urls.py", 40},
	},
	ProjectFlask: {
		{"app.py", 50}, {"wsgi.py", 40}, {"application.py", 50}, {"requirements.txt", 10},
	},
	ProjectJava: {
		{"pom.xml", 40}, {"build.gradle", 40}, {"src/main/java", 50},
	},
	ProjectSpring: {
		{"pom.xml", 60}, {"build.gradle", 60},
		{"src/main/resources/application.properties", 50},
		{"src/main/resources/application.yml", 50},
	},
	ProjectRuby: {
		{"Gemfile", 80}, {"Rakefile", 50}, {"config.ru", 50},
	},
	ProjectPHP: {
		{"composer.json", 30}, {"index.php", 40},
	},
	ProjectLaravel: {
		{"artisan", 100}, {"composer.json", 30}, {"app/Http/Kernel.php", 80},
		{"bootstrap/app.php", 50}, {"config/app.php", 40}, {"routes/web.php", 40},
	},
	ProjectDotnet: {
		{"*.csproj", 90}, {"*.sln", 80}, {"Program.cs", 70},
		{"Startup.cs", 60}, {"appsettings.json", 40},
	},
}

// projectIgnorePatterns adds ecosystem-specific noise directories once a
// type has been detected.
var projectIgnorePatterns = map[ProjectType][]string{
	ProjectGo:      {"vendor/"},
	ProjectRust:    {"target/"},
	ProjectNode:    {"node_modules/", "dist/", "coverage/", "build/"},
	ProjectReact:   {"node_modules/", "build/", "coverage/", ".next/", "out/"},
	ProjectVue:     {"node_modules/", "dist/", "coverage/", ".nuxt/"},
	ProjectAngular: {"node_modules/", "dist/", "coverage/", ".angular/"},
	ProjectPython:  {"__pycache__/", "venv/", ".venv/", "*.pyc", ".tox/", ".eggs/"},
	ProjectDjango:  {"__pycache__/", "venv/", ".venv/", "*.pyc", "staticfiles/", "mediafiles/", "*.sqlite3"},
	ProjectFlask:   {"__pycache__/", "venv/", ".venv/", "*.pyc", "instance/"},
	ProjectJava:    {"target/", "build/", ".gradle/", "*.class"},
	ProjectSpring:  {"target/", "build/", ".gradle/", "*.class", "*.jar", "*.war"},
	ProjectRuby:    {".bundle/", "tmp/", "log/"},
	ProjectPHP:     {"vendor/", "node_modules/"},
	ProjectLaravel: {"storage/framework/", "storage/logs/", "bootstrap/cache/", "vendor/", "node_modules/"},
	ProjectDotnet:  {"bin/", "obj/", "packages/", "*.user", "*.suo", ".vs/"},
}

// frameworkThreshold is the score a framework's own markers must reach
// before a package.json project is classified as that framework rather
// than generic Node; the same bar applies to the other shared-marker pairs.
const frameworkThreshold = 80

// Detector classifies project roots by weighted marker files. Detection
// results are memoised per root path.
type Detector struct {
	mu    sync.Mutex
	cache map[string]detection
}

type detection struct {
	projectType ProjectType
	markers     []string
}

// NewDetector creates a detector with an empty memo.
func NewDetector() *Detector {
	return &Detector{cache: make(map[string]detection)}
}

// Detect scores every known project type against root and returns the
// winner plus the marker files that matched it.
func (d *Detector) Detect(root string) (ProjectType, []string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return ProjectUnknown, nil
	}

	d.mu.Lock()
	if hit, ok := d.cache[abs]; ok {
		d.mu.Unlock()
		return hit.projectType, hit.markers
	}
	d.mu.Unlock()

	scores := make(map[ProjectType]int)
	matched := make(map[ProjectType][]string)
	for pt, markers := range projectMarkers {
		for _, m := range markers {
			if markerPresent(abs, m.pattern) {
				scores[pt] += m.weight
				matched[pt] = append(matched[pt], m.pattern)
			}
		}
	}

	// Ties break lexically so detection is stable across runs.
	best := ProjectUnknown
	for pt, score := range scores {
		if best == ProjectUnknown || score > scores[best] || (score == scores[best] && pt < best) {
			best = pt
		}
	}
	best = refine(best, scores)

	result := detection{projectType: best, markers: matched[best]}
	d.mu.Lock()
	d.cache[abs] = result
	d.mu.Unlock()
	return result.projectType, result.markers
}

// ClearCache drops the memoised detections.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	d.cache = make(map[string]detection)
	d.mu.Unlock()
}

// IgnorePatternsFor returns the extra ignore patterns for a detected type.
func IgnorePatternsFor(t ProjectType) []string {
	return projectIgnorePatterns[t]
}

func markerPresent(root, pat string) bool {
	if strings.ContainsAny(pat, "*?[") {
		matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pat)))
		return err == nil && len(matches) > 0
	}
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(pat)))
	return err == nil
}

// refine disambiguates ecosystems that share a marker: a framework beats
// its generic base only when the framework's own high-weight markers
// clear the threshold.
func refine(best ProjectType, scores map[ProjectType]int) ProjectType {
	promote := func(from, to ProjectType, threshold int) ProjectType {
		if best == from && scores[to] >= threshold {
			return to
		}
		return best
	}

	best = promote(ProjectNode, ProjectReact, frameworkThreshold)
	best = promote(ProjectNode, ProjectVue, frameworkThreshold)
	best = promote(ProjectNode, ProjectAngular, frameworkThreshold)
	best = promote(ProjectPython, ProjectDjango, 90)
	best = promote(ProjectPython, ProjectFlask, 50)
	best = promote(ProjectJava, ProjectSpring, frameworkThreshold)
	best = promote(ProjectPHP, ProjectLaravel, 100)
	return best
}
