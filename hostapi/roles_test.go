package hostapi

import "testing"

func TestRolesNamespace(t *testing.T) {
	deps := &Deps{}
	fns := surface(t, deps)
	e, ctx := newEnv(t)

	t.Run("list starts empty", func(t *testing.T) {
		stack := call(ctx, fns["env._roles_list"])
		if got := readStr(t, e, stack[0]); got != "[]" {
			t.Errorf("_roles_list = %q, want []", got)
		}
	})

	rolePtr, roleLen := put(t, e, "editor")
	permsPtr, permsLen := put(t, e, "posts.write, posts.read")
	call(ctx, fns["env._roles_register"], rolePtr, roleLen, permsPtr, permsLen)

	t.Run("can after register", func(t *testing.T) {
		pPtr, pLen := put(t, e, "posts.write")
		stack := call(ctx, fns["env._roles_can"], rolePtr, roleLen, pPtr, pLen)
		if stack[0] != 1 {
			t.Error("editor cannot posts.write after registration")
		}

		pPtr, pLen = put(t, e, "posts.delete")
		stack = call(ctx, fns["env._roles_can"], rolePtr, roleLen, pPtr, pLen)
		if stack[0] != 0 {
			t.Error("editor holds an unregistered permission")
		}

		otherPtr, otherLen := put(t, e, "ghost")
		stack = call(ctx, fns["env._roles_can"], otherPtr, otherLen, pPtr, pLen)
		if stack[0] != 0 {
			t.Error("unregistered role holds a permission")
		}
	})

	t.Run("list reflects registrations", func(t *testing.T) {
		adminPtr, adminLen := put(t, e, "admin")
		starPtr, starLen := put(t, e, "*")
		call(ctx, fns["env._roles_register"], adminPtr, adminLen, starPtr, starLen)

		stack := call(ctx, fns["env._roles_list"])
		if got := readStr(t, e, stack[0]); got != `["admin","editor"]` {
			t.Errorf("_roles_list = %q, want sorted names", got)
		}
	})

	t.Run("empty role name is dropped", func(t *testing.T) {
		permPtr, permLen := put(t, e, "x")
		call(ctx, fns["env._roles_register"], 0, 0, permPtr, permLen)

		stack := call(ctx, fns["env._roles_list"])
		if got := readStr(t, e, stack[0]); got != `["admin","editor"]` {
			t.Errorf("_roles_list after empty-name register = %q", got)
		}
	})
}
