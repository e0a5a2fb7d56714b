package profile

import (
	"fmt"
	"os"
	"sort"
	"zone-router/model"
	"zone-router/zone"

	"github.com/BurntSushi/toml"
)

// file 配置表的 TOML 结构
type file struct {
	Profiles map[string]Definition `toml:"profiles"`
}

// Set 一组已校验的配置, 加载后不可变
type Set struct {
	profiles map[string]*Profile
	names    []string
}

// NewSet 由编译好的配置构造集合, 名称重复时报错
// 未提供 baseline 时自动补充一个没有规则的 baseline
func NewSet(profiles ...*Profile) (*Set, error) {
	s := &Set{profiles: make(map[string]*Profile, len(profiles)+1)}
	for _, p := range profiles {
		if _, dup := s.profiles[p.Name]; dup {
			return nil, &model.ProfileConfigError{Profile: p.Name, Reason: "duplicate profile name"}
		}
		s.profiles[p.Name] = p
	}
	if _, ok := s.profiles[Baseline]; !ok {
		s.profiles[Baseline] = &Profile{Name: Baseline, DistanceInfluence: DefaultDistanceInfluence}
	}
	for name := range s.profiles {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s, nil
}

// Load 从 TOML 文件加载配置表, 区域引用按已加载的区域集合校验
func Load(path string, zones *zone.Index) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置表失败: %w", err)
	}
	return Parse(data, zones)
}

// Parse 解析 TOML 格式的配置表
func Parse(data []byte, zones *zone.Index) (*Set, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, &model.ProfileConfigError{Reason: fmt.Sprintf("parse profile table: %v", err)}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, &model.ProfileConfigError{Reason: fmt.Sprintf("unknown key %q", undecoded[0].String())}
	}

	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled := make([]*Profile, 0, len(names))
	for _, name := range names {
		p, err := Compile(name, f.Profiles[name], zones)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return NewSet(compiled...)
}

// Get 按名称获取配置
func (s *Set) Get(name string) (*Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// Names 所有配置名称 (有序)
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Summaries 所有配置的概要 (按名称排序)
func (s *Set) Summaries() []Summary {
	out := make([]Summary, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.profiles[name].Summary())
	}
	return out
}
