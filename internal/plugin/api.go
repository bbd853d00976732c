package plugin

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"whoisgate/internal/logging"
	"whoisgate/internal/store"
)

const cacheSubdb = "plugin_cache"

// hostAPI wires the permission-gated host functions for one plugin
// instance into its Lua state, per §4.3's API table.
type hostAPI struct {
	name        string
	permissions Permissions
	timeout     time.Duration
	env         map[string]string
	store       *store.Store
	log         *logging.Logger
	httpClient  *http.Client
}

func (h *hostAPI) register(L *lua.LState) {
	if h.permissions.Network {
		h.httpClient = &http.Client{Timeout: h.timeout}
		L.SetGlobal("http_get", L.NewFunction(h.luaHTTPGet))
	}
	if h.permissions.CacheRead {
		L.SetGlobal("cache_get", L.NewFunction(h.luaCacheGet))
	}
	if h.permissions.CacheWrite {
		L.SetGlobal("cache_set", L.NewFunction(h.luaCacheSet))
	}
	L.SetGlobal("log_info", L.NewFunction(h.luaLog(h.log.Info)))
	L.SetGlobal("log_warn", L.NewFunction(h.luaLog(h.log.Warn)))
	L.SetGlobal("log_error", L.NewFunction(h.luaLog(h.log.Error)))
	L.SetGlobal("env_get", L.NewFunction(h.luaEnvGet))
	L.SetGlobal("env_list", L.NewFunction(h.luaEnvList))
}

func (h *hostAPI) domainAllowed(rawurl string) (string, bool) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if len(h.permissions.AllowedDomains) == 0 {
		return host, false
	}
	for _, d := range h.permissions.AllowedDomains {
		if strings.EqualFold(d, host) {
			return host, true
		}
	}
	return host, false
}

// luaHTTPGet implements http_get(url), per §4.3: fails unless network
// is granted and the URL's host is whitelisted; the failure happens
// before any DNS lookup, satisfying the sandbox invariant in §8.
func (h *hostAPI) luaHTTPGet(L *lua.LState) int {
	rawurl := L.CheckString(1)
	domain, allowed := h.domainAllowed(rawurl)
	if !allowed {
		L.RaiseError("http_get: domain %q is not in the allowed domains whitelist", domain)
		return 0
	}

	req, err := http.NewRequest(http.MethodGet, rawurl, nil)
	if err != nil {
		L.RaiseError("http_get: invalid URL: %v", err)
		return 0
	}
	ua := h.permissions.UserAgent
	if ua == "" {
		ua = "whoisgate-plugin/" + h.name
	}
	req.Header.Set("User-Agent", ua)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		L.RaiseError("http_get: request failed: %v", err)
		return 0
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		L.RaiseError("http_get: reading response: %v", err)
		return 0
	}

	out, _ := json.Marshal(map[string]any{"status": resp.StatusCode, "body": string(body)})
	L.Push(lua.LString(out))
	return 1
}

func (h *hostAPI) luaCacheGet(L *lua.LState) int {
	key := L.CheckString(1)
	val, err := h.store.Get(cacheSubdb, "plugin:"+h.name+":"+key)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(val))
	return 1
}

func (h *hostAPI) luaCacheSet(L *lua.LState) int {
	key := L.CheckString(1)
	value := L.CheckString(2)
	ttl := time.Hour
	if L.GetTop() >= 3 {
		ttl = time.Duration(L.CheckNumber(3)) * time.Second
	}
	if err := h.store.Put(cacheSubdb, "plugin:"+h.name+":"+key, []byte(value), ttl); err != nil {
		L.RaiseError("cache_set: %v", err)
		return 0
	}
	return 0
}

func (h *hostAPI) luaLog(fn func(format string, v ...any)) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		fn("[plugin:%s] %s", h.name, msg)
		return 0
	}
}

func (h *hostAPI) luaEnvGet(L *lua.LState) int {
	name := L.CheckString(1)
	for _, allowed := range h.permissions.EnvVars {
		if allowed == name {
			if v, ok := h.env[name]; ok {
				L.Push(lua.LString(v))
				return 1
			}
			break
		}
	}
	L.Push(lua.LNil)
	return 1
}

func (h *hostAPI) luaEnvList(L *lua.LState) int {
	tbl := L.NewTable()
	i := 1
	for _, name := range h.permissions.EnvVars {
		if _, ok := h.env[name]; ok {
			tbl.RawSetInt(i, lua.LString(name))
			i++
		}
	}
	L.Push(tbl)
	return 1
}
